package notifications

import (
	"fmt"

	"subgate/internal/types"
)

// Message texts shown to users around the payment flow. Kept in one place so
// the payment manager and the chat handlers render identical wording.

// PaymentText is shown together with the checkout link after a payment intent
// was created.
func PaymentText(plan types.Plan) string {
	return fmt.Sprintf(
		"💳 *Оплата подписки*\n\n*Тариф:* %s\n*Стоимость:* %d₽\n%s\n\nНажмите кнопку ниже, чтобы перейти к оплате. После оплаты вернитесь в чат и нажмите «Проверить оплату».",
		plan.Name, plan.Price, plan.Description,
	)
}

// SuccessText is the one-time notification for a successfully applied payment.
func SuccessText(plan types.Plan) string {
	return fmt.Sprintf(
		"✅ *Оплата прошла успешно!*\n\nПодписка «%s» активирована. Спасибо, что вы с нами!",
		plan.Name,
	)
}

// FailureText is the one-time notification for a failed payment.
func FailureText(reason string) string {
	if reason == "" {
		reason = "неизвестная ошибка"
	}
	return fmt.Sprintf(
		"❌ *Оплата не прошла*\n\nПричина: %s.\n\nПопробуйте ещё раз или выберите другой способ оплаты.",
		reason,
	)
}

// CreateErrorText is shown when the payment intent could not be created.
func CreateErrorText() string {
	return "⚠️ Не удалось создать платёж. Попробуйте ещё раз через минуту."
}
