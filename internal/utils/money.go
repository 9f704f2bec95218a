package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatXAF renders an integer CFA franc amount with thousand separators,
// e.g. 9180 -> "9 180 FCFA".
func FormatXAF(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s FCFA", sign, formatThousand(amount, ' '))
}

func formatThousand(n int64, sep byte) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(sep)
		}
		out.WriteRune(c)
	}
	return out.String()
}
