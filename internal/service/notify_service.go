package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/combiapp/combiapp/config"
	"github.com/combiapp/combiapp/internal/clients/push"
	"github.com/combiapp/combiapp/internal/domain"
	"github.com/combiapp/combiapp/internal/metrics"
	"github.com/combiapp/combiapp/internal/storage"
)

// Last-minute window: a same-day ida change only gets broadcast between
// 07:00 and 08:30 local, when it is too late for others to adjust on their
// own. Bounds are inclusive.
const (
	windowStartMin = 7 * 60
	windowEndMin   = 8*60 + 30
)

const lastMinuteTitle = "📢 Aviso de CombiApp"

var (
	ErrMissingTitleBody = errors.New("title and body are required")
	ErrNotAuthorized    = errors.New("only admins can send broadcasts")
)

// Sender delivers one notification to a batch of push targets and reports
// per-target outcomes. Implemented by the push relay client.
type Sender interface {
	SendMulticast(ctx context.Context, title, body string, tokens []string) (*push.MulticastResult, error)
}

// NotifyService watches schedule mutations for last-minute changes and fans
// push notifications out to the rest of the group. Delivery is best-effort:
// no retries, no ordering, and a failed fan-out never surfaces to the write
// that triggered it.
type NotifyService struct {
	storage *storage.Storage
	sender  Sender
	cfg     *config.Config
	metrics *metrics.Collector
	now     func() time.Time
}

func NewNotifyService(s *storage.Storage, sender Sender, cfg *config.Config, m *metrics.Collector) *NotifyService {
	return &NotifyService{storage: s, sender: sender, cfg: cfg, metrics: m, now: time.Now}
}

// OnScheduleUpdated runs after every accepted schedule save. It decides
// whether the edit is a last-minute change to today's ida leg and, if so,
// tells everyone except the rider who made it.
func (n *NotifyService) OnScheduleUpdated(before, after *domain.RiderSchedule) {
	now := n.now().In(n.cfg.Timezone)

	mins := now.Hour()*60 + now.Minute()
	if mins < windowStartMin || mins > windowEndMin {
		log.Printf("notify: update outside last-minute window (%02d:%02d), ignoring", now.Hour(), now.Minute())
		return
	}

	today, ok := domain.WeekdayFromTime(now.Weekday())
	if !ok {
		return // no service on weekends
	}

	b := before.Entry(today, domain.LegIda)
	a := after.Entry(today, domain.LegIda)

	name := after.Nombre
	if name == "" {
		name = "Un pasajero"
	}

	var kind, body string
	switch {
	case b.Going() && a.Declined():
		kind = "dropped_out"
		body = fmt.Sprintf("🚫 Cambio de último momento: %s YA NO viaja hoy.", name)
	case !b.Going() && a.Going():
		kind = "joining"
		parada := a.Stop()
		if parada == "" {
			parada = "su parada habitual"
		}
		body = fmt.Sprintf("✅ Cambio de último momento: %s SE SUMA hoy (Sube en %s).", name, parada)
	case b.Going() && a.Going() && b.Stop() != a.Stop():
		kind = "changed_stop"
		body = fmt.Sprintf("🚏 Cambio de último momento: %s cambia parada a %s.", name, a.Stop())
	default:
		// valid terminal state, not an error
		log.Printf("notify: no notable change in %s's %s ida", after.Email, today.Name())
		return
	}

	n.metrics.LastMinuteChanges.WithLabelValues(kind).Inc()
	log.Printf("notify: last-minute change (%s): %s", kind, body)
	n.fanOut(context.Background(), lastMinuteTitle, body, after.Email)
}

// OnChatMessageCreated fans a new chat message out to everyone but its
// author. Not gated by day or window.
func (n *NotifyService) OnChatMessageCreated(msg *domain.ChatMessage) {
	if msg == nil || msg.Text == "" || msg.SenderEmail == "" {
		return
	}
	sender := msg.SenderName
	if sender == "" {
		sender = "Usuario"
	}
	n.metrics.ChatNotifications.Inc()
	n.fanOut(context.Background(), "💬 "+sender, msg.Text, msg.SenderEmail)
}

// BroadcastResult reports delivery counts to the broadcast caller. Broadcast
// is the one path where delivery outcome is part of the answer.
type BroadcastResult struct {
	SentCount    int `json:"sentCount"`
	FailureCount int `json:"failureCount"`
}

// Broadcast sends an arbitrary notification to every registered target.
// Only admins (static allow-list or directory flag) may call it.
func (n *NotifyService) Broadcast(ctx context.Context, actorEmail, title, body string) (*BroadcastResult, error) {
	if title == "" || body == "" {
		return nil, ErrMissingTitleBody
	}

	admin, err := n.IsAdmin(actorEmail)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if !admin {
		return nil, ErrNotAuthorized
	}

	n.metrics.Broadcasts.Inc()
	sent, failed := n.fanOut(ctx, title, body, "")
	return &BroadcastResult{SentCount: sent, FailureCount: failed}, nil
}

// SendReturnReminder pushes the 16:45 reminder to riders who went out in the
// morning but never registered a return. Each pending rider only hears about
// their own missing answer.
func (n *NotifyService) SendReturnReminder(pending []domain.RiderRef) (sent, failed int) {
	if len(pending) == 0 {
		return 0, 0
	}

	targets := make(map[string]string) // token -> email
	var tokens []string
	for _, rider := range pending {
		u, err := n.storage.GetUser(rider.Email)
		if err != nil {
			log.Printf("notify: loading user %s: %v", rider.Email, err)
			continue
		}
		if u == nil || u.PushToken == "" {
			continue
		}
		if _, ok := targets[u.PushToken]; !ok {
			targets[u.PushToken] = u.Email
			tokens = append(tokens, u.PushToken)
		}
	}

	n.metrics.ReturnReminders.Inc()
	return n.deliver(context.Background(), lastMinuteTitle,
		"🔙 Fuiste a la ida y no registraste tu vuelta. ¿Volvés en la combi hoy?",
		tokens, targets)
}

// fanOut delivers one message to every registered target except excludeEmail.
// The exclusion matches by rider identity, so every token owned by the actor
// is skipped even if it appears more than once in the directory.
func (n *NotifyService) fanOut(ctx context.Context, title, body, excludeEmail string) (sent, failed int) {
	users, err := n.storage.ListUsers()
	if err != nil {
		// reads feeding notification fail open
		log.Printf("notify: listing users: %v", err)
		return 0, 0
	}

	// The actor's target stays out of the audience even if the same token
	// shows up under another directory entry.
	excludedToken := ""
	for _, u := range users {
		if u.Email == excludeEmail {
			excludedToken = u.PushToken
		}
	}

	targets := make(map[string]string) // token -> email
	var tokens []string
	for _, u := range users {
		if u.PushToken == "" || u.Email == excludeEmail || u.PushToken == excludedToken {
			continue
		}
		if _, ok := targets[u.PushToken]; !ok {
			targets[u.PushToken] = u.Email
			tokens = append(tokens, u.PushToken)
		}
	}

	return n.deliver(ctx, title, body, tokens, targets)
}

func (n *NotifyService) deliver(ctx context.Context, title, body string, tokens []string, targets map[string]string) (sent, failed int) {
	if len(tokens) == 0 {
		log.Printf("notify: no tokens to deliver to")
		return 0, 0
	}

	start := time.Now()
	res, err := n.sender.SendMulticast(ctx, title, body, tokens)
	n.metrics.FanoutDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("notify: warning: fan-out to %d targets failed entirely: %v", len(tokens), err)
		n.metrics.NotificationsFailed.Add(float64(len(tokens)))
		return 0, len(tokens)
	}

	n.metrics.NotificationsSent.Add(float64(res.SuccessCount))
	n.metrics.NotificationsFailed.Add(float64(res.FailureCount))

	for _, r := range res.Responses {
		if r.Success || !r.Unregistered() {
			continue
		}
		email, ok := targets[r.Token]
		if !ok {
			continue
		}
		if err := n.storage.ClearPushToken(email); err != nil {
			log.Printf("notify: pruning token for %s: %v", email, err)
			continue
		}
		n.metrics.TokensPruned.Inc()
		log.Printf("notify: pruned dead token for %s", email)
	}

	log.Printf("notify: %d sent, %d failed", res.SuccessCount, res.FailureCount)
	return res.SuccessCount, res.FailureCount
}

// IsAdmin checks the static allow-list first, then the directory flag.
func (n *NotifyService) IsAdmin(email string) (bool, error) {
	if n.cfg.IsAdminEmail(email) {
		return true, nil
	}
	u, err := n.storage.GetUser(email)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsAdmin, nil
}
