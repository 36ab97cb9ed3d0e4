package validation

import (
	"fmt"
	"strings"
)

func DefaultMessage(field, tag string) string {
	field = strings.ToLower(field)

	switch tag {
	case "required":
		return fmt.Sprintf("%s tidak boleh kosong", field)
	case "email":
		return fmt.Sprintf("%s harus berupa alamat email yang valid", field)
	case "min":
		return fmt.Sprintf("%s tidak memenuhi panjang atau nilai minimal", field)
	case "max":
		return fmt.Sprintf("%s melebihi panjang atau nilai maksimal", field)
	case "len":
		return fmt.Sprintf("%s harus memiliki panjang tertentu", field)
	case "alphanum":
		return fmt.Sprintf("%s hanya boleh berisi huruf dan angka", field)
	case "eqfield":
		return fmt.Sprintf("%s harus sama dengan field pembanding", field)
	default:
		return fmt.Sprintf("%s tidak valid", field)
	}
}
