package gate

import (
	"fmt"
	"slices"
	"strings"
)

type filterKind uint8

const (
	kindNone filterKind = iota
	kindExplicit
	kindDelimited
)

// Filter — список допустимых (или запрещенных) значений атрибута.
// Это tagged variant: либо явный набор значений, либо одна строка с разделителями.
// Нулевое значение означает «фильтр не задан».
type Filter struct {
	kind   filterKind
	values []string
	text   string
}

// Explicit задает фильтр явным набором значений.
func Explicit(values ...string) Filter {
	return Filter{kind: kindExplicit, values: slices.Clone(values)}
}

// Delimited задает фильтр строкой вида "Python, C" или "Python C".
// Если в строке есть запятая, делим по запятым, иначе по пробелам.
func Delimited(text string) Filter {
	return Filter{kind: kindDelimited, text: text}
}

// FilterFrom превращает значение из конфига (YAML/JSON) в Filter.
// Поддерживаются nil, string, []string и []any из строк.
func FilterFrom(v any) (Filter, error) {
	switch t := v.(type) {
	case nil:
		return Filter{}, nil
	case Filter:
		return t, nil
	case string:
		return Delimited(t), nil
	case []string:
		return Explicit(t...), nil
	case []any:
		values := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return Filter{}, fmt.Errorf("%w: element %d is %T, want string", ErrMalformedFilter, i, item)
			}
			values = append(values, s)
		}
		return Explicit(values...), nil
	default:
		return Filter{}, fmt.Errorf("%w: got %T", ErrMalformedFilter, v)
	}
}

// IsZero сообщает, что фильтр не задан вовсе.
func (f Filter) IsZero() bool {
	return f.kind == kindNone
}

// Tokens возвращает сырые токены фильтра до канонизации.
// Пустая строка не дает токенов. Строка из одних пробелов — один пустой токен:
// фильтр задан, и ему соответствует только пустое значение.
func (f Filter) Tokens() []string {
	switch f.kind {
	case kindExplicit:
		return slices.Clone(f.values)
	case kindDelimited:
		if f.text == "" {
			return nil
		}
		if strings.Contains(f.text, ",") {
			return strings.Split(f.text, ",")
		}
		if fields := strings.Fields(f.text); len(fields) > 0 {
			return fields
		}
		return []string{f.text}
	default:
		return nil
	}
}

// Set канонизирует токены и собирает их в множество.
// Пустые токены остаются: "A,,B" дает {"A", "", "B"}, а Explicit("") — непустое множество {""}.
func (f Filter) Set() map[string]struct{} {
	tokens := f.Tokens()
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[Canonical(t)] = struct{}{}
	}
	return set
}

// Strings возвращает отсортированные канонические значения. Удобно для API и логов.
func (f Filter) Strings() []string {
	set := f.Set()
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (f Filter) String() string {
	switch f.kind {
	case kindExplicit:
		return "[" + strings.Join(f.values, ", ") + "]"
	case kindDelimited:
		return fmt.Sprintf("%q", f.text)
	default:
		return "<none>"
	}
}
