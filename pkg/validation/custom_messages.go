package validation

func CustomMessage(field string) map[string]string {
	var customValidationMessages = map[string]map[string]string{
		"Email": {
			"required": "email tidak boleh kosong",
			"email":    "email tidak valid",
		},
		"Username": {
			"required": "username tidak boleh kosong",
			"min":      "username minimal 3 karakter",
			"max":      "username maksimal 30 karakter",
		},
		"Password": {
			"required": "password tidak boleh kosong",
			"min":      "password minimal 8 karakter",
		},
		"FirstName": {
			"required": "first name tidak boleh kosong",
		},
		"LastName": {
			"required": "last name tidak boleh kosong",
		},
		"RefreshToken": {
			"required": "refresh token tidak boleh kosong",
		},
		"CurrentPassword": {
			"required": "password lama tidak boleh kosong",
		},
		"NewPassword": {
			"required": "password baru tidak boleh kosong",
			"min":      "password baru minimal 8 karakter",
		},
		"ConfirmPassword": {
			"required": "konfirmasi password tidak boleh kosong",
		},
	}
	return customValidationMessages[field]
}
