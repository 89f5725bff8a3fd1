package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/repository/memory"
)

func TestAuthorizeProject(t *testing.T) {
	projects := memory.NewProjectRepository(memory.NewStore())
	project := &models.Project{UserID: "owner", Name: "site"}
	require.NoError(t, projects.Create(context.Background(), project))

	authorizer := NewOwnerBasedAuthorizer(projects)

	tests := []struct {
		name      string
		userID    string
		projectID string
		wantErr   error
	}{
		{name: "owner", userID: "owner", projectID: project.ID},
		{name: "other user", userID: "intruder", projectID: project.ID, wantErr: domain.ErrForbidden},
		{name: "missing project", userID: "owner", projectID: "nope", wantErr: domain.ErrNotFound},
		{name: "anonymous", userID: "", projectID: project.ID, wantErr: domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authorizer.AuthorizeProject(context.Background(), tt.userID, tt.projectID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, project.ID, got.ID)
		})
	}
}
