package model

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	Password       string  `json:"password" binding:"required,min=6"`
	FullName       string  `json:"full_name" binding:"required"`
	Phone          string  `json:"phone" binding:"required"`
	Role           string  `json:"role" binding:"omitempty,oneof=patient doctor admin"`
	DateOfBirth    *string `json:"date_of_birth"`
	Address        *string `json:"address"`
	IDCard         *string `json:"id_card"`
	Specialization *string `json:"specialization"`
	MedicalHistory *string `json:"medical_history"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *UserSummary `json:"user"`
}

type UserSummary struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"full_name"`
	Role           Role    `json:"role"`
	Phone          string  `json:"phone,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
}

func NewUserSummary(u *User) *UserSummary {
	return &UserSummary{
		ID:             u.ID.String(),
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           u.Role,
		Phone:          u.Phone,
		Specialization: u.Specialization,
	}
}
