package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/avolkov/farview/internal/relay/postgres/repository"
)

// ErrInvalidCredentials возвращается при неверной паре identity/PIN.
// Наружу уходит одинаковый ответ и для неизвестного хоста, и для
// неверного PIN.
var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenTTL = 24 * time.Hour

// HostUsecase - регистрация хостов и выдача токенов на подключение.
type HostUsecase interface {
	RegisterHost(ctx context.Context, identity, alias, pin string) error
	Authenticate(ctx context.Context, identity, pin string) (string, error)
}

type hostUsecase struct {
	secret   []byte
	hostRepo repository.HostRepository
}

func NewHostUsecase(secret []byte, hostRepo repository.HostRepository) HostUsecase {
	return &hostUsecase{secret: secret, hostRepo: hostRepo}
}

func (u *hostUsecase) RegisterHost(ctx context.Context, identity, alias, pin string) error {
	if identity == "" || pin == "" {
		return fmt.Errorf("identity and pin are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	host := &repository.Host{
		Identity: identity,
		Alias:    alias,
		PINHash:  string(hash),
	}

	if err := u.hostRepo.Upsert(ctx, host); err != nil {
		return fmt.Errorf("register host: %w", err)
	}

	return nil
}

// Authenticate проверяет PIN и выдает JWT с subject = identity хоста,
// то есть идентификатором комнаты, куда токен пускает.
func (u *hostUsecase) Authenticate(ctx context.Context, identity, pin string) (string, error) {
	host, err := u.hostRepo.GetByIdentity(ctx, identity)
	if errors.Is(err, repository.ErrHostNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("authenticate host: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(host.PINHash), []byte(pin)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   host.Identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}
