package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sportsroz.org/internal/auth"
)

type userStore struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, full_name, office_id, jersey_name,
	sport_types, date_of_birth, gender, contact, picture_url,
	is_email_verified, is_approved, role_id, otp_code, otp_expires_at,
	created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	sportTypes, err := encodeSportTypes(u.SportTypes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, full_name, office_id, jersey_name,
			sport_types, date_of_birth, gender, contact, picture_url,
			is_email_verified, is_approved, role_id, otp_code, otp_expires_at,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.OfficeID, nullString(u.JerseyName),
		sportTypes, nullTime(u.DateOfBirth), nullString(u.Gender), nullString(u.Contact), nullString(u.PictureURL),
		u.EmailVerified, u.Approved, nullString(u.RoleID), nullString(u.OTPCode), nullTime(u.OTPExpiresAt),
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`select %s from users where id = $1`, userColumns), id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`select %s from users where email = $1`, userColumns), email)
	return scanUser(row)
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	sportTypes, err := encodeSportTypes(u.SportTypes)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update users set
			email = $2, password_hash = $3, full_name = $4, office_id = $5,
			jersey_name = $6, sport_types = $7, date_of_birth = $8, gender = $9,
			contact = $10, picture_url = $11, is_email_verified = $12,
			is_approved = $13, role_id = $14, otp_code = $15, otp_expires_at = $16,
			updated_at = now()
		where id = $1
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.OfficeID,
		nullString(u.JerseyName), sportTypes, nullTime(u.DateOfBirth), nullString(u.Gender),
		nullString(u.Contact), nullString(u.PictureURL), u.EmailVerified,
		u.Approved, nullString(u.RoleID), nullString(u.OTPCode), nullTime(u.OTPExpiresAt))
	if err != nil {
		return mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *userStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`select %s from users order by created_at`, userColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u          auth.User
		jersey     sql.NullString
		sportTypes []byte
		dob        sql.NullTime
		gender     sql.NullString
		contact    sql.NullString
		picture    sql.NullString
		roleID     sql.NullString
		otpCode    sql.NullString
		otpExpires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.OfficeID, &jersey,
		&sportTypes, &dob, &gender, &contact, &picture,
		&u.EmailVerified, &u.Approved, &roleID, &otpCode, &otpExpires,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	u.JerseyName = jersey.String
	u.Gender = gender.String
	u.Contact = contact.String
	u.PictureURL = picture.String
	u.RoleID = roleID.String
	u.OTPCode = otpCode.String
	if dob.Valid {
		t := dob.Time
		u.DateOfBirth = &t
	}
	if otpExpires.Valid {
		t := otpExpires.Time
		u.OTPExpiresAt = &t
	}
	if len(sportTypes) > 0 {
		if err := json.Unmarshal(sportTypes, &u.SportTypes); err != nil {
			return nil, fmt.Errorf("decode sport_types: %w", err)
		}
	}
	return &u, nil
}

func encodeSportTypes(types []string) ([]byte, error) {
	if len(types) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(types)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
