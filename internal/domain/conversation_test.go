package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationAccessibleBy(t *testing.T) {
	adminID := "admin-1"

	tests := []struct {
		name   string
		conv   Conversation
		userID string
		role   string
		want   bool
	}{
		{
			name:   "student accesses own conversation",
			conv:   Conversation{StudentID: "student-1"},
			userID: "student-1",
			role:   RoleStudent,
			want:   true,
		},
		{
			name:   "student denied on another student's conversation",
			conv:   Conversation{StudentID: "student-1"},
			userID: "student-2",
			role:   RoleStudent,
			want:   false,
		},
		{
			name:   "admin accesses unclaimed conversation",
			conv:   Conversation{StudentID: "student-1"},
			userID: "admin-1",
			role:   RoleAdmin,
			want:   true,
		},
		{
			name:   "assigned admin accesses claimed conversation",
			conv:   Conversation{StudentID: "student-1", AdminID: &adminID},
			userID: "admin-1",
			role:   RoleAdmin,
			want:   true,
		},
		{
			name:   "other admin denied on claimed conversation",
			conv:   Conversation{StudentID: "student-1", AdminID: &adminID},
			userID: "admin-2",
			role:   RoleAdmin,
			want:   false,
		},
		{
			name:   "unknown role denied",
			conv:   Conversation{StudentID: "student-1"},
			userID: "student-1",
			role:   "counselor",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.conv.AccessibleBy(tt.userID, tt.role))
		})
	}
}
