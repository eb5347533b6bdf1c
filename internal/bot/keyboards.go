package bot

import (
	"strings"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/vietddude/coinwatch/internal/core/domain"
)

// button builds an inline button whose callback data is action and args
// joined by ":". Data is sent raw so every press lands on tb.OnCallback.
func button(text, action string, args ...string) tb.InlineButton {
	data := action
	if len(args) > 0 {
		data += ":" + strings.Join(args, ":")
	}
	return tb.InlineButton{Text: text, Data: data}
}

func inline(rows ...[]tb.InlineButton) *tb.ReplyMarkup {
	return &tb.ReplyMarkup{InlineKeyboard: rows}
}

func chainKeyboard(action string, chains []domain.Chain) *tb.ReplyMarkup {
	row := make([]tb.InlineButton, 0, len(chains))
	for _, c := range chains {
		row = append(row, button(strings.ToUpper(string(c[:1]))+string(c[1:]), action, string(c)))
	}
	return inline(row, []tb.InlineButton{button("Cancel", "cancel")})
}

func trackKeyboard(coinID int64) *tb.ReplyMarkup {
	return inline([]tb.InlineButton{
		button("Alert on rise", "ctrack", id(coinID), string(domain.DirectionUp)),
		button("Alert on drop", "ctrack", id(coinID), string(domain.DirectionDown)),
	})
}
