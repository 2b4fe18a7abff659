package core

import "strings"

// TxType tells income from expense.
type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Label returns the Portuguese display name.
func (t TxType) Label() string {
	if t == Income {
		return "Receita"
	}
	return "Despesa"
}

// ParseTxType maps a stored or submitted value to a TxType. Anything that is
// not "income" is an expense.
func ParseTxType(s string) TxType {
	if strings.EqualFold(strings.TrimSpace(s), string(Income)) {
		return Income
	}
	return Expense
}

// Category is the closed set of spending/earning categories. CategoryOther
// absorbs every value outside the set.
type Category string

const (
	CategoryFood      Category = "alimentacao"
	CategoryTransport Category = "transporte"
	CategoryHousing   Category = "moradia"
	CategoryLeisure   Category = "lazer"
	CategoryHealth    Category = "saude"
	CategoryEducation Category = "educacao"
	CategorySalary    Category = "salario"
	CategoryOther     Category = "outros"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryHousing,
	CategoryLeisure,
	CategoryHealth,
	CategoryEducation,
	CategorySalary,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryFood:      "Alimentação",
	CategoryTransport: "Transporte",
	CategoryHousing:   "Moradia",
	CategoryLeisure:   "Lazer",
	CategoryHealth:    "Saúde",
	CategoryEducation: "Educação",
	CategorySalary:    "Salário",
	CategoryOther:     "Outros",
}

// ParseCategory returns the category with tag s, or CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categoryLabels[c]; ok {
		return c
	}
	return CategoryOther
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOther]
}

// PaymentMethod is the closed set of payment methods. PaymentMoney is the
// fallback for unknown values.
type PaymentMethod string

const (
	PaymentMoney    PaymentMethod = "money"
	PaymentDebit    PaymentMethod = "debit"
	PaymentCredit   PaymentMethod = "credit"
	PaymentPix      PaymentMethod = "pix"
	PaymentTransfer PaymentMethod = "transfer"
)

var PaymentMethods = []PaymentMethod{
	PaymentMoney,
	PaymentDebit,
	PaymentCredit,
	PaymentPix,
	PaymentTransfer,
}

var paymentLabels = map[PaymentMethod]string{
	PaymentMoney:    "Dinheiro",
	PaymentDebit:    "Débito",
	PaymentCredit:   "Cartão de Crédito",
	PaymentPix:      "PIX",
	PaymentTransfer: "Transferência",
}

// ParsePaymentMethod returns the method with tag s, or PaymentMoney.
func ParsePaymentMethod(s string) PaymentMethod {
	p := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := paymentLabels[p]; ok {
		return p
	}
	return PaymentMoney
}

func (p PaymentMethod) Valid() bool {
	_, ok := paymentLabels[p]
	return ok
}

func (p PaymentMethod) Label() string {
	if l, ok := paymentLabels[p]; ok {
		return l
	}
	return paymentLabels[PaymentMoney]
}
