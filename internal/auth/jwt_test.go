package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("site-1", "report_ab12", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.SiteID != "site-1" || claims.FileID != "report_ab12" {
		t.Fatalf("claims mismatch: got %q/%q", claims.SiteID, claims.FileID)
	}
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, err := GenerateToken("s", "f", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = ParseToken(tok, secret)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("s", "f", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = ParseToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrorInvalidToken) {
		t.Fatalf("expected common.ErrorInvalidToken, got %v", err)
	}
}

func TestParseToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := ParseToken("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrorInvalidToken) {
		t.Fatalf("expected common.ErrorInvalidToken, got %v", err)
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{SiteID: "s", FileID: "f"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(tok, []byte("k")); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestVerify_BindsToFile(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := GenerateToken("s1", "a", secret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if err := Verify(tok, secret, "s1", "a"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Verify(tok, secret, "s1", "b"); !errors.Is(err, common.ErrorInvalidToken) {
		t.Fatalf("expected invalid token for other file, got %v", err)
	}
	if err := Verify(tok, secret, "s2", "a"); !errors.Is(err, common.ErrorInvalidToken) {
		t.Fatalf("expected invalid token for other site, got %v", err)
	}
}
