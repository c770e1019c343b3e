package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchidnexus/orchid/internal/clock"
	"github.com/orchidnexus/orchid/internal/domain"
)

// NoticeTTL is how long a notice stays up unless dismissed.
const NoticeTTL = 5 * time.Second

// Board holds the single visible notice. A newer notice replaces the
// current one and restarts the timer.
type Board struct {
	clock clock.Clock

	mu       sync.Mutex
	current  *domain.Notice
	timer    clock.Timer
	onChange func()
}

func NewBoard(c clock.Clock) *Board {
	if c == nil {
		c = clock.Real()
	}
	return &Board{clock: c}
}

// OnChange registers fn to run whenever the visible notice changes. fn runs
// without the board lock held.
func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Board) Show(projectID int, message string) domain.Notice {
	n := domain.Notice{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Message:    message,
		ReceivedAt: b.clock.Now(),
	}

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.current = &n
	b.timer = b.clock.AfterFunc(NoticeTTL, func() { b.Dismiss(n.ID) })
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
	return n
}

func (b *Board) Current() (domain.Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return domain.Notice{}, false
	}
	return *b.current, true
}

// Dismiss hides the notice with the given id. It reports false when that
// notice is no longer the visible one.
func (b *Board) Dismiss(id uuid.UUID) bool {
	b.mu.Lock()
	if b.current == nil || b.current.ID != id {
		b.mu.Unlock()
		return false
	}
	b.clearLocked()
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Clear hides whatever is showing.
func (b *Board) Clear() {
	b.mu.Lock()
	had := b.current != nil
	b.clearLocked()
	fn := b.onChange
	b.mu.Unlock()

	if had && fn != nil {
		fn()
	}
}

func (b *Board) clearLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.current = nil
}
