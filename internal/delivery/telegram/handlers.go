package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	wizard  *usecase.Wizard
	alertUC *usecase.AlertUsecase
	catalog domain.Catalog
	logger  *zap.Logger
}

func NewHandlers(wizard *usecase.Wizard, alertUC *usecase.AlertUsecase, catalog domain.Catalog, logger *zap.Logger) *Handlers {
	return &Handlers{wizard: wizard, alertUC: alertUC, catalog: catalog, logger: logger}
}

// HandleUpdate routes one update. The chat id is the alert owner and the
// wizard session.
func (h *Handlers) HandleUpdate(ctx context.Context, api Sender, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.handleCallback(ctx, api, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	if update.Message.IsCommand() {
		h.handleCommand(ctx, api, update.Message)
		return
	}
	if update.Message.Text != "" {
		h.advance(ctx, api, update.Message.Chat.ID, update.Message.Text)
	}
}

func (h *Handlers) handleCommand(ctx context.Context, api Sender, message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()
	chatID := message.Chat.ID

	h.logger.Info(
		"telegram command received",
		zap.Int64("chat_id", chatID),
		zap.String("command", command),
		zap.String("args", args),
	)

	switch command {
	case "start":
		h.reply(api, chatID, "Welcome to Pricewatch.\n\n"+HelpText)
	case "help":
		h.reply(api, chatID, HelpText)
	case "alert", "price":
		h.start(ctx, api, chatID, domain.KindPrice)
	case "depeg":
		var opts []usecase.StartOption
		if sources := ParseSources(args); len(sources) > 0 {
			opts = append(opts, usecase.WithSources(sources...))
		}
		h.start(ctx, api, chatID, domain.KindDepeg, opts...)
	case "pairdepeg", "pair":
		h.start(ctx, api, chatID, domain.KindPairDepeg)
	case "cancel":
		outcome, err := h.wizard.Cancel(ctx, chatID)
		if err != nil {
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.reply(api, chatID, FormatOutcome(outcome))
	case "alerts":
		alerts, err := h.alertUC.ListAlerts(ctx, chatID)
		if err != nil {
			h.logger.Warn("alerts list failed", zap.Int64("chat_id", chatID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		if len(alerts) == 0 {
			h.reply(api, chatID, "No alerts yet. Use /alert, /depeg or /pairdepeg to create one.")
			return
		}
		h.logger.Info("alerts list complete", zap.Int64("chat_id", chatID), zap.Int("count", len(alerts)))
		h.reply(api, chatID, formatAlerts(alerts))
	case "delete":
		alertID, err := ParseAlertID(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /delete <alert_id>")
			return
		}
		if err := h.alertUC.DeleteAlert(ctx, chatID, alertID); err != nil {
			h.logger.Warn("delete failed", zap.Int64("chat_id", chatID), zap.Uint("alert_id", alertID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		h.logger.Info("delete complete", zap.Int64("chat_id", chatID), zap.Uint("alert_id", alertID))
		h.reply(api, chatID, fmt.Sprintf("Alert #%d deleted.", alertID))
	case "symbols":
		h.reply(api, chatID, formatSymbols(h.catalog))
	default:
		h.logger.Warn("unknown command", zap.Int64("chat_id", chatID), zap.String("command", command))
		h.reply(api, chatID, "Unknown command.\n\n"+HelpText)
	}
}

func (h *Handlers) handleCallback(ctx context.Context, api Sender, query *tgbotapi.CallbackQuery) {
	if _, err := api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.logger.Debug("callback answer failed", zap.Error(err))
	}
	if query.Message == nil || query.Message.Chat == nil {
		return
	}
	input, ok := ParseCallback(query.Data)
	if !ok {
		return
	}
	h.advance(ctx, api, query.Message.Chat.ID, input)
}

func (h *Handlers) start(ctx context.Context, api Sender, chatID int64, kind domain.AlertKind, opts ...usecase.StartOption) {
	outcome, err := h.wizard.Start(ctx, chatID, kind, opts...)
	if err != nil {
		h.reply(api, chatID, h.errorMessage(err))
		return
	}
	h.respond(api, chatID, outcome)
}

func (h *Handlers) advance(ctx context.Context, api Sender, chatID int64, input string) {
	outcome, err := h.wizard.Advance(ctx, chatID, input)
	if err != nil {
		h.reply(api, chatID, h.errorMessage(err))
		return
	}
	h.respond(api, chatID, outcome)
}

func (h *Handlers) respond(api Sender, chatID int64, outcome usecase.Outcome) {
	msg := tgbotapi.NewMessage(chatID, FormatOutcome(outcome))
	if outcome.Kind == usecase.OutcomePrompt {
		if keyboard := Keyboard(outcome.Options); keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
	}
	h.send(api, msg)
}

func (h *Handlers) errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrWizardNotStarted):
		return "Nothing in progress. Use /alert, /depeg or /pairdepeg to create an alert."
	case errors.Is(err, domain.ErrUnknownSource):
		return fmt.Sprintf("Unknown source. Available: %v", h.catalog.Sources)
	case errors.Is(err, usecase.ErrAlertNotFound):
		return "Alert not found."
	case errors.Is(err, domain.ErrPersistence):
		h.logger.Error("storage error", zap.Error(err))
		return "Could not save your progress. Please try again."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func (h *Handlers) reply(api Sender, chatID int64, text string) {
	h.send(api, tgbotapi.NewMessage(chatID, text))
}

func (h *Handlers) send(api Sender, msg tgbotapi.MessageConfig) {
	if _, err := api.Send(msg); err != nil {
		h.logger.Warn("failed to send reply", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}
