// Package bot implements the Telegram chat surface: the command and inline
// keyboard flow through which users browse plans, open payments, and check
// subscription status. The bot never applies payment outcomes itself; it
// only creates payments and reads reconciled state, so a lost chat message
// can never desynchronize billing.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"subgate/internal/billing"
	"subgate/internal/notifications"
	"subgate/internal/payments"
	"subgate/internal/types"
)

// UserStore records users on first contact.
type UserStore interface {
	Upsert(ctx context.Context, u *types.User, now time.Time) error
}

// PaymentFlows is the subset of the payments service the bot needs.
type PaymentFlows interface {
	Create(ctx context.Context, userID int64, planID types.PlanID) (*payments.CreateResult, error)
	CheckPayment(ctx context.Context, paymentID string) (*types.Payment, error)
}

// SubscriptionFlows is the subset of the subscriptions service the bot needs.
type SubscriptionFlows interface {
	Get(ctx context.Context, userID int64) (*types.Subscription, error)
	Cancel(ctx context.Context, userID int64) (bool, error)
	StatusText(sub *types.Subscription) string
}

// Handler routes Telegram updates to the domain services.
type Handler struct {
	api    *tgbotapi.BotAPI
	users  UserStore
	pay    PaymentFlows
	subs   SubscriptionFlows
	plans  billing.Catalog
	logger *slog.Logger
}

// NewHandler creates a bot Handler.
func NewHandler(
	api *tgbotapi.BotAPI,
	users UserStore,
	pay PaymentFlows,
	subs SubscriptionFlows,
	plans billing.Catalog,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		api:    api,
		users:  users,
		pay:    pay,
		subs:   subs,
		plans:  plans,
		logger: logger,
	}
}

// Run consumes the long-polling update stream until the context is canceled.
func (h *Handler) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := h.api.GetUpdatesChan(u)
	defer h.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate dispatches a single Telegram update.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
		return
	}

	msg := upd.Message
	if msg == nil || msg.From == nil {
		return
	}
	// Private chats only.
	if !msg.Chat.IsPrivate() {
		return
	}

	h.upsertUser(ctx, msg.From)

	switch msg.Command() {
	case "start":
		h.reply(msg.Chat.ID, welcomeText, mainMenuKeyboard())
	case "product":
		h.reply(msg.Chat.ID, productText, plansKeyboard(h.plans.All()))
	case "pricing", "subscribe":
		h.reply(msg.Chat.ID, pricingText(h.plans.All()), plansKeyboard(h.plans.All()))
	case "status":
		h.sendStatus(ctx, msg.Chat.ID, msg.From.ID)
	case "cancel":
		h.handleCancel(ctx, msg.Chat.ID, msg.From.ID)
	}
}

// upsertUser records the user on every contact; display attributes are
// last-write-wins.
func (h *Handler) upsertUser(ctx context.Context, from *tgbotapi.User) {
	err := h.users.Upsert(ctx, &types.User{
		ID:           from.ID,
		Username:     from.UserName,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
	}, time.Now())
	if err != nil {
		h.logger.WarnContext(ctx, "user upsert failed", "user_id", from.ID, "error", err)
	}
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// Telegram requires every callback to be answered.
	defer func() { _, _ = h.api.Request(tgbotapi.NewCallback(q.ID, "")) }()

	if q.Message == nil || q.From == nil {
		return
	}
	chatID := q.Message.Chat.ID
	h.upsertUser(ctx, q.From)

	switch {
	case q.Data == "product":
		h.edit(chatID, q.Message.MessageID, productText, plansKeyboard(h.plans.All()))
	case q.Data == "pricing":
		h.edit(chatID, q.Message.MessageID, pricingText(h.plans.All()), plansKeyboard(h.plans.All()))
	case q.Data == "status":
		h.editStatus(ctx, chatID, q.Message.MessageID, q.From.ID)
	case q.Data == "back":
		h.edit(chatID, q.Message.MessageID, welcomeText, mainMenuKeyboard())
	case q.Data == "cancel":
		h.handleCancel(ctx, chatID, q.From.ID)
	case strings.HasPrefix(q.Data, "subscribe:"):
		h.handleSubscribe(ctx, q, types.PlanID(strings.TrimPrefix(q.Data, "subscribe:")))
	case strings.HasPrefix(q.Data, "check:"):
		h.handleCheck(ctx, q, strings.TrimPrefix(q.Data, "check:"))
	}
}

// handleSubscribe opens a payment for the chosen plan and swaps the menu for
// the checkout keyboard.
func (h *Handler) handleSubscribe(ctx context.Context, q *tgbotapi.CallbackQuery, planID types.PlanID) {
	chatID := q.Message.Chat.ID

	res, err := h.pay.Create(ctx, q.From.ID, planID)
	if err != nil {
		h.logger.ErrorContext(ctx, "payment creation failed",
			"user_id", q.From.ID, "plan", planID, "error", err)
		h.edit(chatID, q.Message.MessageID, createErrorText, mainMenuKeyboard())
		return
	}

	h.edit(chatID, q.Message.MessageID,
		notifications.PaymentText(res.Plan),
		paymentKeyboard(res.ConfirmationURL, res.PaymentID),
	)
}

// handleCheck polls the provider for the payment the user is waiting on.
// A success discovered here goes through the same reconciliation path as a
// webhook, so the reply below is the only message the user receives.
func (h *Handler) handleCheck(ctx context.Context, q *tgbotapi.CallbackQuery, paymentID string) {
	chatID := q.Message.Chat.ID

	p, err := h.pay.CheckPayment(ctx, paymentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "payment check failed",
			"payment_id", paymentID, "user_id", q.From.ID, "error", err)
		h.edit(chatID, q.Message.MessageID, createErrorText, mainMenuKeyboard())
		return
	}

	switch p.Status {
	case types.PaymentSucceeded:
		plan, _ := h.plans.Get(p.PlanID)
		h.edit(chatID, q.Message.MessageID, notifications.SuccessText(plan), mainMenuKeyboard())
	case types.PaymentFailed:
		h.edit(chatID, q.Message.MessageID, checkFailedText, plansKeyboard(h.plans.All()))
	default:
		// Keep the checkout keyboard so the user can pay or re-check.
		_, _ = h.api.Request(tgbotapi.NewCallback(q.ID, checkPendingText))
	}
}

func (h *Handler) handleCancel(ctx context.Context, chatID, userID int64) {
	canceled, err := h.subs.Cancel(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "cancel failed", "user_id", userID, "error", err)
		h.reply(chatID, createErrorText, mainMenuKeyboard())
		return
	}
	if canceled {
		h.reply(chatID, cancelDoneText, mainMenuKeyboard())
		return
	}
	h.reply(chatID, cancelNothingText, mainMenuKeyboard())
}

func (h *Handler) sendStatus(ctx context.Context, chatID, userID int64) {
	sub := h.lookupSubscription(ctx, userID)
	h.reply(chatID, h.subs.StatusText(sub), statusKeyboard(sub != nil && sub.Status == types.SubStatusActive))
}

func (h *Handler) editStatus(ctx context.Context, chatID int64, messageID int, userID int64) {
	sub := h.lookupSubscription(ctx, userID)
	h.edit(chatID, messageID, h.subs.StatusText(sub), statusKeyboard(sub != nil && sub.Status == types.SubStatusActive))
}

// lookupSubscription returns nil when the user has never subscribed; other
// errors also render as "no subscription" rather than breaking the chat flow.
func (h *Handler) lookupSubscription(ctx context.Context, userID int64) *types.Subscription {
	sub, err := h.subs.Get(ctx, userID)
	if err != nil {
		if types.CodeOf(err) != types.ErrCodeNotFoundSubscription {
			h.logger.ErrorContext(ctx, "subscription lookup failed", "user_id", userID, "error", err)
		}
		return nil
	}
	return sub
}

func (h *Handler) reply(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = kb
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) edit(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = &kb
	if _, err := h.api.Send(edit); err != nil {
		h.logger.Warn("telegram edit failed", "chat_id", chatID, "error", err)
	}
}
