package validation

import (
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/test/assert"

	apperrors "api-yamdb/pkg/common/errors"
)

type userInput struct {
	Username string  `json:"username" validate:"required,max=150,username,notme"`
	Email    string  `json:"email" validate:"required,email,max=254"`
	Role     *string `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

type titleInput struct {
	Year  int      `json:"year" validate:"notfuture"`
	Genre []string `json:"genre" validate:"dive,slug"`
	Score int      `json:"score" validate:"min=1,max=10"`
}

func fieldErrors(t *testing.T, err error) apperrors.FieldErrors {
	t.Helper()
	fe, ok := err.(apperrors.FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T: %v", err, err)
	}
	return fe
}

func TestUsernameRules(t *testing.T) {
	ok := []string{"alice", "bob_1", "abc", "Алиса", "abc-def"}
	for _, name := range ok {
		err := ValidateStruct(&userInput{Username: name, Email: "a@x.com"})
		assert.Nil(t, err)
	}

	bad := []string{"", "ab", "me", "ME", "-abc", "a b", "..."}
	for _, name := range bad {
		err := ValidateStruct(&userInput{Username: name, Email: "a@x.com"})
		fe := fieldErrors(t, err)
		assert.Assert(t, len(fe["username"]) > 0, name)
	}
}

func TestReservedUsername(t *testing.T) {
	for _, name := range []string{"me", "Me", "mE", "ME"} {
		assert.Assert(t, IsReservedUsername(name))
	}
	assert.Assert(t, !IsReservedUsername("meme"))
}

func TestEmailLength(t *testing.T) {
	local := make([]byte, 64)
	for i := range local {
		local[i] = 'a'
	}
	domain := make([]byte, 0, 210)
	for len(domain) < 200 {
		domain = append(domain, []byte("abcdefghi.")...)
	}
	long := string(local) + "@" + string(domain) + "com"

	err := ValidateStruct(&userInput{Username: "alice", Email: long})
	fe := fieldErrors(t, err)
	assert.Assert(t, len(fe["email"]) > 0)

	err = ValidateStruct(&userInput{Username: "alice", Email: "not-an-email"})
	fe = fieldErrors(t, err)
	assert.DeepEqual(t, []string{"Enter a valid email address."}, fe["email"])
}

func TestRoleChoice(t *testing.T) {
	role := "root"
	err := ValidateStruct(&userInput{Username: "alice", Email: "a@x.com", Role: &role})
	fe := fieldErrors(t, err)
	assert.DeepEqual(t, []string{`"root" is not a valid choice.`}, fe["role"])
}

func TestYearSlugScore(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = time.Now }()

	err := ValidateStruct(&titleInput{Year: 2025, Genre: []string{"ok-slug", "bad slug"}, Score: 11})
	fe := fieldErrors(t, err)
	assert.DeepEqual(t, []string{"Year cannot be in the future."}, fe["year"])
	assert.Assert(t, len(fe["genre"]) == 1)
	assert.DeepEqual(t, []string{"Ensure this value is less than or equal to 10."}, fe["score"])

	assert.Nil(t, ValidateStruct(&titleInput{Year: 2024, Genre: []string{"drama"}, Score: 10}))
}
