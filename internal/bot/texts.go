package bot

import (
	"fmt"
	"strings"

	"subgate/internal/types"
)

const welcomeText = `👋 Добро пожаловать!

Я помогу оформить подписку на наш продукт.

Выберите действие в меню ниже:`

const productText = `📦 *О продукте*

Наш продукт даёт доступ к закрытым материалам и инструментам.

Доступ открывается сразу после оплаты подписки и действует весь оплаченный период.`

// pricingText renders the plan list from the catalog so menu prices can
// never drift from what the payment is actually created for.
func pricingText(plans []types.Plan) string {
	var b strings.Builder
	b.WriteString("💰 *Цены и тарифы*\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "\n*%s* — %d₽/месяц\n%s\n", p.Name, p.Price, p.Description)
	}
	return b.String()
}

const createErrorText = "❌ Не удалось создать платёж. Попробуйте позже."

const checkPendingText = "⏳ Платёж ещё не подтверждён. Если вы уже оплатили, подождите минуту и проверьте снова."

const checkFailedText = "❌ Платёж не прошёл. Попробуйте оформить подписку заново."

const cancelDoneText = "🚫 Подписка отменена. Доступ сохранится до конца оплаченного периода."

const cancelNothingText = "У вас нет активной подписки, отменять нечего."
