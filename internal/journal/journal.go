package journal

/*
Файл journal.go реализует журнал решений гейтов.

- Non-blocking: Log никогда не блокирует горячий путь; при переполнении буфера событие
  сбрасывается с записью в zap.
- Batching: накопление записей и пакетная запись по таймеру или по размеру батча.
- Drain: Stop закрывает канал, воркер вычитывает остатки и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/condgate/internal/domain"
)

// Storage определяет, куда физически сохраняются записи
type Storage interface {
	WriteBatch(ctx context.Context, records []domain.DecisionRecord) error
}

// Logger — то, что нужно транспортам. Реализуется Journal и Nop.
type Logger interface {
	Log(rec domain.DecisionRecord)
}

// Nop отбрасывает записи. Для сервисов без БД и тестов.
type Nop struct{}

func (Nop) Log(domain.DecisionRecord) {}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
}

type Journal struct {
	ch     chan domain.DecisionRecord
	repo   Storage
	logger *zap.Logger
	opts   Options
	wg     sync.WaitGroup

	// mu защищает closed и close(ch): Log держит RLock, поэтому не пишет в закрытый канал
	mu     sync.RWMutex
	closed bool
}

func New(repo Storage, logger *zap.Logger, opts Options) *Journal {
	opts.withDefaults()
	return &Journal{
		ch:     make(chan domain.DecisionRecord, opts.BufferSize),
		repo:   repo,
		logger: logger.With(zap.String("mod", "journal")),
		opts:   opts,
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop «запирает» вход и ждет, пока воркер всё допишет. Повторный вызов безопасен.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

func (j *Journal) Log(rec domain.DecisionRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.logger.Warn("decision record dropped: journal is stopping", zap.String("id", rec.ID))
		return
	}

	// Load Shedding: при переполнении не ждем
	select {
	case j.ch <- rec:
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("rule", rec.Rule),
			zap.String("trace_id", rec.TraceID),
		)
	}
}

// Pending — сколько записей ждет в канале.
func (j *Journal) Pending() int {
	return len(j.ch)
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]domain.DecisionRecord, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст может быть уже закрыт
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]domain.DecisionRecord, 0, j.opts.BatchSize)
	}

	for {
		select {
		case rec, ok := <-j.ch:
			if !ok {
				// Канал закрыт в Stop(): всё, что было в очереди, уже вычитано
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, rec)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
