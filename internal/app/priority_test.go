package app

import (
	"testing"

	"helpdesk_bot/internal/domain/ticket"
)

func TestClassifyPriority(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		category string
		want     ticket.Priority
	}{
		{"urgent keyword", "мне срочно нужна помощь", "", ticket.PriorityUrgent},
		{"urgent english", "this is urgent!!!", "", ticket.PriorityUrgent},
		{"urgent case-insensitive", "СРОЧНО помогите", "", ticket.PriorityUrgent},
		{"high keyword", "важно решить до пятницы", "", ticket.PriorityHigh},
		{"low keyword", "подскажите, как оформить справку", "", ticket.PriorityLow},
		{"no keywords", "хочу сменить пароль", "", ticket.PriorityNormal},
		{"urgent wins over high and low", "СРОЧНО, важно, вопрос", "", ticket.PriorityUrgent},
		{"high wins over low", "важно, есть вопрос", "", ticket.PriorityHigh},
		{"category IT bumps to high", "хочу сменить пароль", "IT", ticket.PriorityHigh},
		{"category лк bumps to high", "хочу сменить пароль", "Личный кабинет", ticket.PriorityHigh},
		{"short лк label bumps to high", "хочу сменить пароль", "ЛК", ticket.PriorityHigh},
		{"keyword beats category", "подскажите, пожалуйста", "IT", ticket.PriorityLow},
		{"other category stays normal", "хочу сменить пароль", "Общежитие", ticket.PriorityNormal},
		{"blank text is normal", "", "IT", ticket.PriorityNormal},
		{"whitespace text is normal", "   \n\t", "IT", ticket.PriorityNormal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPriority(tc.text, tc.category); got != tc.want {
				t.Errorf("ClassifyPriority(%q, %q) = %s, want %s", tc.text, tc.category, got, tc.want)
			}
		})
	}
}

func TestPriorityLabel(t *testing.T) {
	cases := map[ticket.Priority]string{
		ticket.PriorityUrgent: "🔴 Срочно",
		ticket.PriorityHigh:   "🟠 Высокий",
		ticket.PriorityNormal: "🟢 Обычный",
		ticket.PriorityLow:    "⚪ Низкий",
	}
	for p, want := range cases {
		if got := PriorityLabel(p); got != want {
			t.Errorf("PriorityLabel(%s) = %q, want %q", p, got, want)
		}
	}
}
