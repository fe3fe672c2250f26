package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrAttributeMissing — у получателя нет атрибута, по которому гейт принимает решение.
	// Вызов при этом не подавляется, а завершается ошибкой.
	ErrAttributeMissing = errors.New("gate: attribute missing")

	// ErrMalformedFilter — значение фильтра не строка и не набор строк.
	ErrMalformedFilter = errors.New("gate: malformed filter")
)

// AttributeError описывает, какой атрибут не найден и у какого получателя.
type AttributeError struct {
	Attribute string
	Receiver  string // Имя типа получателя, для логов
}

func (e *AttributeError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("gate: empty attribute name on %s", e.Receiver)
	}
	return fmt.Sprintf("gate: %s has no attribute %q", e.Receiver, e.Attribute)
}

func (e *AttributeError) Unwrap() error {
	return ErrAttributeMissing
}
