package conversation

// Canned Arabic replies sent to customers. The product ships Arabic-first;
// these are not templated per tenant.
const (
	// ReplyAssistantBusy is sent when the generative pipeline fails for a
	// transient reason.
	ReplyAssistantBusy = "عذراً، المساعد الذكي مشغول حالياً. يمكنك تكرار طلبك بعد قليل أو التواصل مع الإدارة مباشرة. 🙏"

	// ReplyQuotaExhausted is sent when every model reported quota exhaustion.
	ReplyQuotaExhausted = "عذراً، المساعد الذكي وصل للحد الأقصى من الاستخدام اليومي المجاني من شركة جوجل. يرجى المحاولة غداً أو تزويدنا بمفتاح API جديد. 🙏"

	// replyConflictFormat replaces the model's reply entirely when the
	// requested slot is taken. Verb args: date, time as the model wrote them.
	replyConflictFormat = "عذراً، هذا الموعد (%s الساعة %s) محجوز مسبقاً. ❌\n\nيرجى اختيار وقت آخر."

	// replyBookedSuffix is appended after a successful booking.
	replyBookedSuffix = "\n\n✅ تم تأكيد الحجز في النظام."

	// replySaveFailedSuffix is appended when the directive could not be
	// turned into an appointment row.
	replySaveFailedSuffix = "\n\n(عذراً، حدث خطأ تقني في حفظ الموعد، يرجى التواصل هاتفياً)."
)
