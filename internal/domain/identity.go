package domain

// Identity представляет вызывающего пользователя, извлеченного из bearer токена
type Identity struct {
	UserID     string   `json:"user_id"`
	CampusCode string   `json:"campus_code"`
	Roles      []string `json:"roles"`
}

// HasRole проверяет наличие роли у пользователя
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// InScope проверяет, что кампус совпадает с областью видимости пользователя
func (i Identity) InScope(campusCode string) bool {
	return i.CampusCode != "" && i.CampusCode == campusCode
}
