package postgres

import (
	"context"
	"errors"
	"fmt"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func (s *Store) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", classify(err))
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Id, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", classify(err))
	}
	return users, nil
}

func (s *Store) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Store) getUser(ctx context.Context, query, key string) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&user.Id, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, key)
		}
		return nil, fmt.Errorf("unable to query user: %w", classify(err))
	}
	return &user, nil
}

// CreateAccount inserts the user and its zeroed balance row in one transaction
func (s *Store) CreateAccount(ctx context.Context, userId, name, email string) (*models.User, *models.Balance, error) {
	if userId == "" {
		userId = uuid.New().String()
	}
	zap.L().Info("Creating account", zap.String("id", userId), zap.String("email", email))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, classify(err)
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zap.L().Warn("Failed to rollback account creation", zap.Error(err))
		}
	}()

	now := s.now()
	if _, err := tx.Exec(ctx, queryInsertUser, userId, name, email, now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("%w: %s", store.ErrUserExists, email)
		}
		return nil, nil, fmt.Errorf("unable to insert user: %w", classify(err))
	}

	balance, err := scanBalance(tx.QueryRow(ctx, queryInsertBalance, uuid.New().String(), userId, now))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to insert balance: %w", classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("unable to commit account: %w", classify(err))
	}

	zap.L().Info("Account created successfully", zap.String("id", userId))
	user := &models.User{Id: userId, Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	return user, balance, nil
}
