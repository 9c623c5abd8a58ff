package model

import "time"

// Patron roles as stored in patrons.role.  Role checks are performed
// by the HTTP middleware; the circulation engine assumes the caller
// has already been authorized.
const (
	RolePatron = "PATRON"
	RoleStaff  = "STAFF"
	RoleAdmin  = "ADMIN"
)

// Patron represents a library member or staff account as stored in
// the `patrons` table.  BorrowedCount is denormalized and must always
// equal the number of the patron's loans with no return date; it is
// only ever adjusted inside the same transaction that creates or
// closes a loan.
//
// Fields:
//  ID            – primary key identifier.
//  Email         – unique email address (login).
//  PasswordHash  – bcrypt hashed password, never the plaintext.
//  FirstName     – given name, used by staff loan search.
//  LastName      – family name, used by staff loan search.
//  Role          – PATRON, STAFF or ADMIN.
//  BorrowedCount – number of currently open loans.
//  Blocked       – when true the patron may not check out items.
//  PenaltyCents  – accumulated penalty balance in cents; tracked but
//                  never computed or charged by this service.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type Patron struct {
	ID            uint64    // patrons.id
	Email         string    // patrons.email
	PasswordHash  string    // patrons.password_hash
	FirstName     string    // patrons.first_name
	LastName      string    // patrons.last_name
	Role          string    // patrons.role
	BorrowedCount int       // patrons.borrowed_count
	Blocked       bool      // patrons.blocked
	PenaltyCents  int64     // patrons.penalty_cents
	CreatedAt     time.Time // patrons.created_at
	UpdatedAt     time.Time // patrons.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only
// the SHA-256 hash of the token value is stored.
//
// Fields:
//  ID        – primary key identifier.
//  PatronID  – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	PatronID  uint64     // refresh_tokens.patron_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
