package identity

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestPatient_Age(t *testing.T) {
	p := &Patient{DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)}
	tests := []struct {
		on   time.Time
		want int
	}{
		{time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), 33},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 34},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 34},
	}
	for _, tt := range tests {
		if got := p.Age(tt.on); got != tt.want {
			t.Errorf("Age(%s) = %d, want %d", tt.on.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleReceptionist, RoleDoctor, RoleNurse, RoleCashier} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("superuser").Valid() || Role("").Valid() {
		t.Error("unknown roles must be invalid")
	}
}

func TestUser_CheckPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	u := &User{PasswordHash: string(hash)}
	if !u.CheckPassword("letmein") {
		t.Error("expected password to match")
	}
	if u.CheckPassword("LETMEIN") {
		t.Error("expected mismatch")
	}
	if (&User{}).CheckPassword("") {
		t.Error("empty hash must never match")
	}
}

func TestFullName(t *testing.T) {
	d := &Doctor{FirstName: "Sam", LastName: "Lee"}
	if d.FullName() != "Sam Lee" {
		t.Errorf("got %q", d.FullName())
	}
}
