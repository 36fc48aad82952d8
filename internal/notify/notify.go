package notify

import (
	"sync"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"go.uber.org/zap"
)

// Notifier delivers a user-facing message about the outcome of an action.
type Notifier interface {
	Notify(n domain.Notification)
}

// Success and Failure build the two notification variants the shop uses.
func Success(title, description string) domain.Notification {
	return domain.Notification{Title: title, Description: description, Variant: domain.VariantDefault}
}

func Failure(description string) domain.Notification {
	return domain.Notification{Title: "Error", Description: description, Variant: domain.VariantDestructive}
}

// Inbox queues notifications for one client until they are drained into a
// response.
type Inbox struct {
	mu      sync.Mutex
	pending []domain.Notification
	limit   int
	log     *zap.Logger
}

const defaultInboxLimit = 50

func NewInbox(log *zap.Logger) *Inbox {
	return &Inbox{limit: defaultInboxLimit, log: log}
}

// Notify appends n, dropping the oldest entry once the inbox is full.
func (i *Inbox) Notify(n domain.Notification) {
	i.log.Debug("notification",
		zap.String("title", n.Title),
		zap.String("description", n.Description),
		zap.String("variant", string(n.Variant)))

	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.pending) >= i.limit {
		i.pending = i.pending[1:]
	}
	i.pending = append(i.pending, n)
}

// Drain returns the queued notifications in arrival order and empties the
// inbox. It never returns nil.
func (i *Inbox) Drain() []domain.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.pending
	i.pending = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}

func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}
