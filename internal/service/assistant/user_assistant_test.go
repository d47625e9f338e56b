package assistant

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"promptcoach/internal/config"
	"promptcoach/internal/models"
	"promptcoach/internal/storage"
)

func TestRegisterAndLogin(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "  alice ", "secret", models.LanguageEN)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Username != "alice" || user.PreferredLanguage != models.LanguageEN {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "secret" {
		t.Fatalf("password stored in plaintext")
	}
	if _, err := svc.RegisterUser(ctx, "alice", "other", models.LanguageES); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}

	logged, err := svc.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("unexpected login user id %d", logged.ID)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, err := svc.RegisterUser(ctx, "", "x", ""); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRegisterDefaultsLanguage(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	user, err := svc.RegisterUser(context.Background(), "bob", "pw", "fr")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.PreferredLanguage != models.LanguageES {
		t.Fatalf("expected es default, got %s", user.PreferredLanguage)
	}
}

func TestUpdateLanguageAndDeleteUser(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "carol")

	if err := svc.UpdateUserLanguage(ctx, userID, models.LanguageEN); err != nil {
		t.Fatalf("UpdateUserLanguage: %v", err)
	}
	user, err := svc.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.PreferredLanguage != models.LanguageEN {
		t.Fatalf("language not updated: %s", user.PreferredLanguage)
	}
	if err := svc.UpdateUserLanguage(ctx, userID, "de"); err == nil {
		t.Fatalf("expected unsupported language error")
	}
	if err := svc.UpdateUserLanguage(ctx, userID+100, models.LanguageES); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows for unknown user, got %v", err)
	}

	if _, err := svc.SaveChatMessage(ctx, models.ChatMessage{UserID: userID, Message: "hi", Response: "hello", Language: models.LanguageEN}); err != nil {
		t.Fatalf("SaveChatMessage: %v", err)
	}
	if err := svc.DeleteUser(ctx, userID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := svc.GetUser(ctx, userID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected deleted user, got %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chat_messages WHERE user_id = ?`, userID).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("chat history not cascaded: %d", count)
	}
	if err := svc.DeleteUser(ctx, userID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows on second delete, got %v", err)
	}
}

func TestChatHistory(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "dave")

	base := time.Now().UTC().Add(-time.Hour)
	for i, text := range []string{"first", "second", "third"} {
		msg := models.ChatMessage{
			UserID:    userID,
			Message:   text,
			Response:  "reply " + text,
			Language:  models.LanguageES,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if text == "third" {
			msg.Kind = "image"
			msg.ImageURL = "https://img.example.com/x.png"
		}
		if _, err := svc.SaveChatMessage(ctx, msg); err != nil {
			t.Fatalf("SaveChatMessage: %v", err)
		}
	}

	history, err := svc.ChatHistory(ctx, userID, 2)
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 2 || history[0].Message != "second" || history[1].Message != "third" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[0].Kind != "text" || history[1].ImageURL != "https://img.example.com/x.png" {
		t.Fatalf("kind or image url lost: %+v", history)
	}

	if _, err := svc.SaveChatMessage(ctx, models.ChatMessage{UserID: userID, Message: "   "}); err == nil {
		t.Fatalf("expected empty message error")
	}
}

func TestCleanupExpiredHistory(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "erin")

	old := models.ChatMessage{UserID: userID, Message: "old", Language: models.LanguageES, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := models.ChatMessage{UserID: userID, Message: "recent", Language: models.LanguageES}
	for _, m := range []models.ChatMessage{old, recent} {
		if _, err := svc.SaveChatMessage(ctx, m); err != nil {
			t.Fatalf("SaveChatMessage: %v", err)
		}
	}

	svc.cleanupExpiredHistory(ctx, 24*time.Hour)

	history, err := svc.ChatHistory(ctx, userID, 0)
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 1 || history[0].Message != "recent" {
		t.Fatalf("unexpected history after cleanup: %+v", history)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertTestUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO users (username, password_hash, created_at) VALUES (?, '', ?)`, username, now)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	return id
}
