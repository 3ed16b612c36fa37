package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
		wantErr  bool
	}{
		{input: "fridge", expected: "fridge"},
		{input: "Washing Machine", expected: "washingmachine"},
		{input: " TV ", expected: "tv"},
		{input: "printer3d", expected: "printer3d"},
		{input: "toaster", wantErr: true},
		{input: "", wantErr: true},
		{input: "fridge; DROP TABLE user", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			c, err := ParseCategory(tc.input)
			if tc.wantErr {
				var unknown *ErrUnknownCategory
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, tc.input, unknown.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, c)
		})
	}
}

func TestCategory_Registry(t *testing.T) {
	all := Categories()
	require.Len(t, all, 24)
	assert.Equal(t, Category("airconditioner"), all[0])
	assert.Equal(t, Category("washingmachine"), all[len(all)-1])

	for _, c := range all {
		assert.True(t, c.Valid())
		assert.Equal(t, c.String()+"_power_consumption", c.Table())
	}

	assert.Equal(t, "fridge_plot", Category("fridge").PlotKey())
	assert.Equal(t, "fridge_statistics", Category("fridge").StatisticsKey())
	assert.False(t, Category("toaster").Valid())
	assert.Empty(t, Category("toaster").Table())
}

func TestUser_ToResponseHidesPassword(t *testing.T) {
	u := &User{
		ID:           "u-1",
		Username:     "john123",
		Email:        "john@example.com",
		PasswordHash: "$2a$12$hash",
		CreatedAt:    time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")

	resp := u.ToResponse()
	assert.Equal(t, "john123", resp.Username)
	assert.Equal(t, u.CreatedAt, resp.CreatedAt)
}
