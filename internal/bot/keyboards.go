package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"subgate/internal/types"
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📦 Подробная информация о продукте", "product"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💰 Посмотреть цены и тарифы", "pricing"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📊 Статус моей подписки", "status"),
		},
	)
}

// plansKeyboard lists one subscribe button per catalog plan plus a back
// button, preserving catalog order.
func plansKeyboard(plans []types.Plan) tgbotapi.InlineKeyboardMarkup {
	icons := map[types.PlanID]string{
		types.PlanBasic:   "🟢",
		types.PlanPremium: "🟡",
		types.PlanVIP:     "🟠",
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range plans {
		icon := icons[p.ID]
		if icon == "" {
			icon = "🔹"
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s Оформить %s (%d₽)", icon, p.Name, p.Price),
				"subscribe:"+string(p.ID),
			),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад в главное меню", "back"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// paymentKeyboard points the user at the provider checkout page and offers a
// manual status check for when the webhook is slow to arrive.
func paymentKeyboard(confirmationURL, paymentID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonURL("💳 Оплатить", confirmationURL),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🔄 Проверить оплату", "check:"+paymentID),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад в главное меню", "back"),
		},
	)
}

func statusKeyboard(hasActive bool) tgbotapi.InlineKeyboardMarkup {
	if hasActive {
		return tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("🚫 Отменить подписку", "cancel"),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад в главное меню", "back"),
			},
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💰 Посмотреть цены и тарифы", "pricing"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад в главное меню", "back"),
		},
	)
}
