package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of caller kinds.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole rejects anything outside the three known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string { return string(r) }

// DefaultSpecialization is reported for doctors that registered without one.
const DefaultSpecialization = "General"

// User represents a registered patient, doctor or admin
type User struct {
	Base
	Email          string  `json:"email" db:"email"`
	PasswordHash   string  `json:"-" db:"password_hash"`
	FullName       string  `json:"full_name" db:"full_name"`
	Phone          string  `json:"phone" db:"phone"`
	Role           Role    `json:"role" db:"role"`
	DateOfBirth    *string `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Address        *string `json:"address,omitempty" db:"address"`
	IDCard         *string `json:"id_card,omitempty" db:"id_card"`
	Specialization *string `json:"specialization,omitempty" db:"specialization"`
	MedicalHistory *string `json:"medical_history,omitempty" db:"medical_history"`
}

// SpecializationOrDefault returns the doctor's specialization or "General".
func (u *User) SpecializationOrDefault() string {
	if u.Specialization == nil || *u.Specialization == "" {
		return DefaultSpecialization
	}
	return *u.Specialization
}

// Identity is the authenticated caller attached to every request.
type Identity struct {
	ID       uuid.UUID `json:"id"`
	Role     Role      `json:"role"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

func (i *Identity) IsAdmin() bool   { return i.Role == RoleAdmin }
func (i *Identity) IsPatient() bool { return i.Role == RolePatient }
func (i *Identity) IsDoctor() bool  { return i.Role == RoleDoctor }

// NewIdentity projects a stored user onto the caller identity.
func NewIdentity(u *User) *Identity {
	return &Identity{
		ID:       u.ID,
		Role:     u.Role,
		FullName: u.FullName,
		Email:    u.Email,
	}
}

// Doctor is the public view of a doctor account.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Specialization string    `json:"specialization"`
}

func NewDoctor(u *User) *Doctor {
	return &Doctor{
		ID:             u.ID,
		FullName:       u.FullName,
		Email:          u.Email,
		Phone:          u.Phone,
		Specialization: u.SpecializationOrDefault(),
	}
}

// Specialization is an entry of the static specialization catalogue.
type Specialization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
