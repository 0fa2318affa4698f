package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"

	"github.com/govalues/decimal"
)

// Scale количество знаков после запятой у всех сумм платформы.
const Scale = 2

// Amount хранит сумму в минимальных единицах (центах).
type Amount int64

// Zero нулевая сумма.
const Zero Amount = 0

// FromCents создаёт сумму из центов.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// Parse разбирает десятичную строку вида "100.50".
// Больше двух знаков после запятой считается ошибкой, округления не делаем.
func Parse(s string) (Amount, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("money: некорректная сумма %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse как Parse, но паникует. Только для тестов и констант.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal переводит decimal в центы.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	rounded := d.Round(Scale)
	if d.Cmp(rounded) != 0 {
		return 0, fmt.Errorf("money: сумма %s содержит больше %d знаков после запятой", d, Scale)
	}

	coef := rounded.Coef()
	for i := rounded.Scale(); i < Scale; i++ {
		if coef > math.MaxInt64/10 {
			return 0, fmt.Errorf("money: сумма %s слишком большая", d)
		}
		coef *= 10
	}
	if coef > math.MaxInt64 {
		return 0, fmt.Errorf("money: сумма %s слишком большая", d)
	}

	cents := int64(coef)
	if rounded.IsNeg() {
		cents = -cents
	}
	return Amount(cents), nil
}

// Cents возвращает сумму в центах.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Decimal возвращает сумму как decimal с двумя знаками.
func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.New(int64(a), Scale)
	if err != nil {
		// int64 всегда помещается в коэффициент decimal.
		panic(err)
	}
	return d
}

// String форматирует сумму, например "100.00".
func (a Amount) String() string {
	return a.Decimal().String()
}

// IsPositive сообщает, что сумма больше нуля.
func (a Amount) IsPositive() bool {
	return a > 0
}

// Neg меняет знак суммы.
func (a Amount) Neg() Amount {
	return -a
}

// Percent возвращает долю суммы в процентах с округлением вниз.
// Остаток от деления достаётся вызывающему через a - a.Percent(p).
func (a Amount) Percent(pct int) Amount {
	return Amount(int64(a) * int64(pct) / 100)
}

// MarshalJSON отдаёт сумму строкой, чтобы не терять точность на клиенте.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON принимает строку "100.50" или число 100.5.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value реализует driver.Valuer: в базе храним центы.
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan реализует sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*a = Amount(v)
	case int:
		*a = Amount(v)
	case []byte:
		parsed, err := parseIntString(string(v))
		if err != nil {
			return err
		}
		*a = parsed
	case string:
		parsed, err := parseIntString(v)
		if err != nil {
			return err
		}
		*a = parsed
	case nil:
		*a = 0
	default:
		return fmt.Errorf("money: неподдерживаемый тип %T", src)
	}
	return nil
}

func parseIntString(s string) (Amount, error) {
	var cents int64
	if _, err := fmt.Sscan(s, &cents); err != nil {
		return 0, fmt.Errorf("money: некорректное значение в базе %q: %w", s, err)
	}
	return Amount(cents), nil
}
