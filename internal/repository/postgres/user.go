package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const userColumns = `id, email, password_hash, full_name, phone, role,
	date_of_birth, address, id_card, specialization, medical_history,
	created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, full_name, phone, role,
			date_of_birth, address, id_card, specialization, medical_history,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	return r.run(ctx, "user.create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.FullName,
			user.Phone,
			user.Role,
			user.DateOfBirth,
			user.Address,
			user.IDCard,
			user.Specialization,
			user.MedicalHistory,
			user.CreatedAt,
			user.UpdatedAt,
		)
		return err
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	err := r.run(ctx, "user.get", func() error {
		return r.db.GetContext(ctx, &user, query, id)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user model.User
	err := r.run(ctx, "user.get_by_email", func() error {
		return r.db.GetContext(ctx, &user, query, email)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListDoctors(ctx context.Context, specialization string) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1`
	args := []interface{}{model.RoleDoctor}

	if specialization != "" {
		query += ` AND specialization = $2`
		args = append(args, specialization)
	}
	query += ` ORDER BY full_name ASC LIMIT 100`

	var doctors []*model.User
	err := r.run(ctx, "user.list_doctors", func() error {
		doctors = doctors[:0]
		return r.db.SelectContext(ctx, &doctors, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return doctors, nil
}
