package helpers

import "fmt"

// FormatUSD formats a dollar amount with comma thousand separators and two
// decimal places, e.g. 9500 -> "$9,500.00".
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	cents := int64(amount*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	str := fmt.Sprintf("%d", whole)
	length := len(str)

	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	if negative {
		return fmt.Sprintf("-$%s.%02d", result, frac)
	}
	return fmt.Sprintf("$%s.%02d", result, frac)
}

// FormatPercent renders a percentage with one decimal, e.g. 57.63 -> "57.6%".
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}
