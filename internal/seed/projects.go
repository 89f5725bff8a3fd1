package seed

import (
	"context"
	"fmt"
	"log/slog"

	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
	"webforge/internal/domain/services"
)

// Seeder prepares development data: credit grants and sample projects.
// It goes through the same repositories and revision store as the server.
type Seeder struct {
	projects  repositories.ProjectRepository
	revisions services.RevisionStore
	ledger    services.CreditLedger
	logger    *slog.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(
	projects repositories.ProjectRepository,
	revisions services.RevisionStore,
	ledger services.CreditLedger,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		projects:  projects,
		revisions: revisions,
		ledger:    ledger,
		logger:    logger,
	}
}

// GrantCredits adds amount to the user's balance once per label.
// Re-running with the same label is a no-op.
func (s *Seeder) GrantCredits(ctx context.Context, userID string, amount int, label string) error {
	if amount <= 0 {
		return nil
	}
	err := s.ledger.Credit(ctx, &services.LedgerEntry{
		UserID:         userID,
		Amount:         amount,
		Reason:         models.CreditReasonGrant,
		IdempotencyKey: fmt.Sprintf("grant:%s:%s", userID, label),
	})
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Info("credits granted", "user_id", userID, "amount", amount, "label", label, "balance", balance)
	return nil
}

type sampleProject struct {
	name      string
	prompt    string
	versions  []string
	published bool
}

var sampleProjects = []sampleProject{
	{
		name:   "Coffee Shop Landing",
		prompt: "A landing page for a neighbourhood coffee shop with opening hours and a menu",
		versions: []string{
			sampleCoffeeV1,
			sampleCoffeeV2,
		},
		published: true,
	},
	{
		name:     "Photography Portfolio",
		prompt:   "A minimal dark portfolio for a landscape photographer",
		versions: []string{samplePortfolioV1},
	},
}

// SeedSampleProjects creates the sample projects the user does not have yet.
// Returns the projects it created.
func (s *Seeder) SeedSampleProjects(ctx context.Context, userID string) ([]models.Project, error) {
	existing, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	var created []models.Project
	for _, sample := range sampleProjects {
		if have[sample.name] {
			s.logger.Debug("sample project exists, skipping", "name", sample.name)
			continue
		}

		project, err := s.createSample(ctx, userID, sample)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", sample.name, err)
		}
		created = append(created, *project)
	}
	return created, nil
}

func (s *Seeder) createSample(ctx context.Context, userID string, sample sampleProject) (*models.Project, error) {
	project := &models.Project{
		UserID:        userID,
		Name:          sample.name,
		InitialPrompt: sample.prompt,
		Status:        models.ProjectStatusQueued,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	var parent *int
	for i, code := range sample.versions {
		origin := models.OriginManualEdit
		var prompt *string
		if i == 0 {
			origin = models.OriginGenerated
			prompt = &sample.prompt
		}

		revision, err := s.revisions.AppendRevision(ctx, &services.AppendRevisionRequest{
			ProjectID:             project.ID,
			Code:                  code,
			Origin:                origin,
			ExpectedParentVersion: parent,
			Prompt:                prompt,
		})
		if err != nil {
			return nil, err
		}
		parent = &revision.VersionNumber
	}

	if err := s.projects.SetStatus(ctx, project.ID, models.ProjectStatusReady, nil); err != nil {
		return nil, err
	}
	if sample.published {
		if err := s.projects.SetPublished(ctx, project.ID, true); err != nil {
			return nil, err
		}
	}

	s.logger.Info("sample project created",
		"project_id", project.ID,
		"name", project.Name,
		"versions", len(sample.versions),
		"published", sample.published,
	)
	return s.projects.GetByID(ctx, project.ID)
}

// ClearUserProjects deletes every project the user owns
func (s *Seeder) ClearUserProjects(ctx context.Context, userID string) (int, error) {
	projects, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i, p := range projects {
		if err := s.revisions.DeleteProject(ctx, p.ID); err != nil {
			return i, fmt.Errorf("delete %s: %w", p.ID, err)
		}
	}
	return len(projects), nil
}

const sampleCoffeeV1 = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Corner Coffee</title>
<style>
body { font-family: Georgia, serif; margin: 0; background: #f6efe6; color: #3b2a1a; }
header { padding: 4rem 2rem; text-align: center; background: #6f4e37; color: #fff; }
main { max-width: 40rem; margin: 2rem auto; padding: 0 1rem; }
</style>
</head>
<body>
<header><h1>Corner Coffee</h1><p>Small batch roasts since 2012</p></header>
<main>
<h2>Opening hours</h2>
<p>Mon-Fri 7:00-18:00, Sat-Sun 8:00-16:00</p>
</main>
</body>
</html>`

const sampleCoffeeV2 = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Corner Coffee</title>
<style>
body { font-family: Georgia, serif; margin: 0; background: #f6efe6; color: #3b2a1a; }
header { padding: 4rem 2rem; text-align: center; background: #6f4e37; color: #fff; }
main { max-width: 40rem; margin: 2rem auto; padding: 0 1rem; }
li { display: flex; justify-content: space-between; }
</style>
</head>
<body>
<header><h1>Corner Coffee</h1><p>Small batch roasts since 2012</p></header>
<main>
<h2>Opening hours</h2>
<p>Mon-Fri 7:00-18:00, Sat-Sun 8:00-16:00</p>
<h2>Menu</h2>
<ul>
<li><span>Espresso</span><span>2.50</span></li>
<li><span>Flat white</span><span>3.40</span></li>
<li><span>Filter of the day</span><span>3.00</span></li>
</ul>
</main>
</body>
</html>`

const samplePortfolioV1 = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>North Light</title>
<style>
body { margin: 0; background: #111; color: #ddd; font-family: Helvetica, Arial, sans-serif; }
h1 { font-weight: 200; letter-spacing: .3em; text-align: center; padding: 3rem 0; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(16rem, 1fr)); gap: 1rem; padding: 1rem; }
.grid div { aspect-ratio: 3 / 2; background: #222; }
</style>
</head>
<body>
<h1>NORTH LIGHT</h1>
<section class="grid"><div></div><div></div><div></div><div></div></section>
</body>
</html>`
