package dto

// RegisterHostRequest - регистрация хоста в реестре relay.
type RegisterHostRequest struct {
	Identity string `json:"identity"`
	Alias    string `json:"alias"`
	PIN      string `json:"pin"`
}

// AuthRequest - запрос токена на подключение к комнате хоста.
type AuthRequest struct {
	Identity string `json:"identity"`
	PIN      string `json:"pin"`
}

// AuthResponse - выданный токен.
type AuthResponse struct {
	Token string `json:"token"`
}
