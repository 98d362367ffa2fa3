package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

// Request is used for chat actions (typing indicator), which have no
// useful response message.
type requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type botAPIRequester struct{ api *tgbotapi.BotAPI }

func (r botAPIRequester) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return r.api.Request(c)
}
