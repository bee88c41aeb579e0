package util

import (
	"errors"
	"study_assistant_backend/internal/model"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "a@b.c", Role: model.Admin}
	user.ID = 9

	token, err := GenerateJWT(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 9 || claims.Role != model.Admin || claims.TokenType != AccessToken {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ParseJWT(token, "other-secret"); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestJWTExpired(t *testing.T) {
	user := &model.User{Email: "a@b.c"}
	token, err := GenerateRefreshJWT(user, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseJWT(token, "secret"); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(1, 4); got != 25 {
		t.Fatalf("Percentage(1, 4) = %v", got)
	}
	if got := Percentage(3, 0); got != 0 {
		t.Fatalf("Percentage(3, 0) = %v", got)
	}
}
