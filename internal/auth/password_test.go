package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordService(bcrypt.MinCost)
}

func TestNewPasswordService_OutOfRangeCostFallsBack(t *testing.T) {
	for _, cost := range []int{0, -1, 3, 32} {
		if got := NewPasswordService(cost).cost; got != DefaultCost {
			t.Errorf("NewPasswordService(%d).cost = %d, want %d", cost, got, DefaultCost)
		}
	}
	if got := NewPasswordService(bcrypt.MinCost).cost; got != bcrypt.MinCost {
		t.Errorf("NewPasswordService(MinCost).cost = %d", got)
	}
}

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
	if strings.Contains(hash, "password123") {
		t.Error("Hash() output contains the plaintext")
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() should reject passwords longer than 72 bytes")
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name         string
		hash         string
		candidate    string
		wantErr      bool
		wantSentinel bool
	}{
		{name: "correct password", hash: hash, candidate: "correct-horse-battery-staple"},
		{name: "wrong password", hash: hash, candidate: "wrong", wantErr: true, wantSentinel: true},
		{name: "empty candidate", hash: hash, candidate: "", wantErr: true, wantSentinel: true},
		{name: "garbage hash", hash: "not-a-bcrypt-hash", candidate: "x", wantErr: true},
		{name: "account without password", hash: "", candidate: "x", wantErr: true, wantSentinel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.candidate)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantSentinel && !errors.Is(err, ErrInvalidPassword) {
				t.Errorf("Verify() error = %v, want ErrInvalidPassword", err)
			}
		})
	}
}
