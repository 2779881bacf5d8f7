package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"buildmatch/internal/app"
	"buildmatch/internal/config"
	"buildmatch/internal/db"
	"buildmatch/internal/domain"
	"buildmatch/internal/engine"
	"buildmatch/internal/policy"
	"buildmatch/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "bm",
	Short: "Buildmatch CLI",
	Long: `Buildmatch connects property developers with accredited construction
professionals. Projects move through the eight RIBA delivery stages, tasks
live on a per-project ordered board, professionals bid on open tenders, and
developers staff their projects through private nominations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BUILDMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "", "acting user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(bidCmd())
	rootCmd.AddCommand(nominateCmd())
	rootCmd.AddCommand(directoryCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage developer organizations"}
	var name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOrganization(ctx, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "organization name")
	org.AddCommand(add)
	return org
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage platform users"}
	var email, fullName, role, orgID, company, bio string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || fullName == "" || role == "" {
				return fmt.Errorf("--email, --name and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{
					Email:       email,
					FullName:    fullName,
					Role:        domain.Role(strings.ToUpper(role)),
					OrgID:       orgID,
					CompanyName: company,
					Bio:         bio,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&fullName, "name", "", "full name")
	add.Flags().StringVar(&role, "role", "", "DEVELOPER, PROFESSIONAL or ADMIN")
	add.Flags().StringVar(&orgID, "org", "", "organization id (developers)")
	add.Flags().StringVar(&company, "company", "", "company name (professionals)")
	add.Flags().StringVar(&bio, "bio", "", "profile bio (professionals)")
	user.AddCommand(add)
	return user
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectSetStageCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title, desc, site, authority string
	var units, budget int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				opts := engine.ProjectCreateOptions{
					Title:          title,
					Description:    desc,
					SiteAddress:    optionalString(site),
					LocalAuthority: optionalString(authority),
				}
				if units > 0 {
					opts.UnitsPlanned = &units
				}
				if budget > 0 {
					opts.BudgetEstimate = &budget
				}
				proj, err := e.CreateProject(ctx, p, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(proj)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&site, "site", "", "site address")
	cmd.Flags().StringVar(&authority, "authority", "", "local planning authority")
	cmd.Flags().IntVar(&units, "units", 0, "units planned")
	cmd.Flags().IntVar(&budget, "budget", 0, "budget estimate")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				items, err := e.ListProjects(ctx, p)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Stage", "Org"})
				for _, proj := range items {
					tw.AppendRow(table.Row{proj.ID, proj.Title, proj.CurrentStage, proj.OrgID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with counts and roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				view, err := e.GetProjectView(ctx, p, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
	return cmd
}

func projectSetStageCmd() *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "set-stage <project-id>",
		Short: "Set the RIBA delivery stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stage == "" {
				return fmt.Errorf("--stage required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				proj, err := e.SetStage(ctx, p, args[0], domain.RIBAStage(strings.ToUpper(stage)))
				if err != nil {
					return err
				}
				fmt.Printf("%s is now at %s (%s)\n", proj.Title, proj.CurrentStage, e.Config.StageLabel(proj.CurrentStage))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "STAGE_0 .. STAGE_7")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage the project board"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskMoveCmd())
	task.AddCommand(taskReindexCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var projectID, title, desc, status, stage, due, assignee string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task to a project board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || title == "" {
				return fmt.Errorf("--project and --title required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				opts := engine.TaskCreateOptions{
					ProjectID:   projectID,
					Title:       title,
					Description: desc,
					Status:      domain.TaskStatus(strings.ToUpper(status)),
					DueDate:     optionalString(due),
					AssigneeID:  optionalString(assignee),
				}
				if stage != "" {
					s := domain.RIBAStage(strings.ToUpper(stage))
					opts.RIBAStage = &s
				}
				t, err := e.CreateTask(ctx, p, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "board column (default BACKLOG)")
	cmd.Flags().StringVar(&stage, "stage", "", "RIBA stage tag")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "professional profile id")
	return cmd
}

func taskListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project board in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Order", "Assignee"})
				for _, t := range tasks {
					assignee := ""
					if t.Assignee != nil {
						assignee = t.Assignee.FullName
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.OrderIndex, assignee})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func taskMoveCmd() *cobra.Command {
	var projectID, taskID, status string
	var orderIndex int
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Reposition a task on the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || taskID == "" {
				return fmt.Errorf("--project and --task required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				opts := engine.TaskMoveOptions{ProjectID: projectID, TaskID: taskID}
				if status != "" {
					s := domain.TaskStatus(strings.ToUpper(status))
					opts.Status = &s
				}
				if cmd.Flags().Changed("order") {
					opts.OrderIndex = &orderIndex
				}
				t, err := e.MoveTask(ctx, p, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&status, "status", "", "target column")
	cmd.Flags().IntVar(&orderIndex, "order", 0, "target order index")
	return cmd
}

func taskReindexCmd() *cobra.Command {
	var projectID, status string
	var ids []string
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rewrite a status column to a contiguous 0..n-1 order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || status == "" || len(ids) == 0 {
				return fmt.Errorf("--project, --status and --ids required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				if err := e.ReindexPartition(ctx, p, projectID, domain.TaskStatus(strings.ToUpper(status)), ids); err != nil {
					return err
				}
				fmt.Printf("reindexed %d tasks in %s/%s\n", len(ids), projectID, strings.ToUpper(status))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&status, "status", "", "board column")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "task ids in the desired order")
	return cmd
}

func bidCmd() *cobra.Command {
	bid := &cobra.Command{Use: "bid", Short: "Tender applications"}
	bid.AddCommand(bidSubmitCmd())
	bid.AddCommand(bidCountCmd())
	return bid
}

func bidSubmitCmd() *cobra.Command {
	var projectID, proposal, fee, methodology, timeline string
	var qualIDs, portfolioIDs []string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Apply to a project tender",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				b, err := e.SubmitBid(ctx, p, engine.BidSubmitOptions{
					ProjectID:        projectID,
					ProposalText:     proposal,
					FeeProposal:      fee,
					Methodology:      methodology,
					Timeline:         timeline,
					QualificationIDs: qualIDs,
					PortfolioIDs:     portfolioIDs,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&proposal, "proposal", "", "proposal narrative")
	cmd.Flags().StringVar(&fee, "fee", "", "fee proposal")
	cmd.Flags().StringVar(&methodology, "methodology", "", "methodology and approach")
	cmd.Flags().StringVar(&timeline, "timeline", "", "proposed timeline")
	cmd.Flags().StringSliceVar(&qualIDs, "qualifications", nil, "qualification ids to attach")
	cmd.Flags().StringSliceVar(&portfolioIDs, "portfolio", nil, "portfolio item ids to attach")
	return cmd
}

func bidCountCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count bids on a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.CountBids(ctx, projectID)
				if err != nil {
					return err
				}
				fmt.Printf("%d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func nominateCmd() *cobra.Command {
	nom := &cobra.Command{Use: "nominate", Short: "Project staffing roster"}
	nom.AddCommand(nominateAddCmd())
	nom.AddCommand(nominateRemoveCmd())
	nom.AddCommand(nominateRosterCmd())
	return nom
}

func nominateAddCmd() *cobra.Command {
	var projectID, professionalID, roleDesc string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Nominate a professional to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || professionalID == "" {
				return fmt.Errorf("--project and --professional required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				n, err := e.Nominate(ctx, p, projectID, professionalID, roleDesc)
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&professionalID, "professional", "", "professional profile id")
	cmd.Flags().StringVar(&roleDesc, "role", "", "role description, e.g. Lead Architect")
	return cmd
}

func nominateRemoveCmd() *cobra.Command {
	var projectID, assignmentID string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a roster assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || assignmentID == "" {
				return fmt.Errorf("--project and --assignment required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				if err := e.RemoveNomination(ctx, p, projectID, assignmentID); err != nil {
					return err
				}
				fmt.Println("removed")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "assignment id")
	return cmd
}

func nominateRosterCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "View a project roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				roster, err := e.Roster(ctx, p, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(roster)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Assignment", "Professional", "Company", "Role", "Appointed"})
				for _, n := range roster {
					tw.AppendRow(table.Row{n.ID, n.FullName, n.CompanyName, n.RoleDescription, n.AppointedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func directoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Browse the professional directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Directory(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Profile", "Company", "Rating"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.CompanyName, fmt.Sprintf("%.1f", p.RatingAverage)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Platform configuration"}
	var platformID string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default buildmatch.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(platformID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&platformID, "platform", "buildmatch", "platform id")
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	cfg.AddCommand(initCmd)
	cfg.AddCommand(show)
	return cfg
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Audit event log"}
	var n int
	var projectID, evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, projectID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&projectID, "project", "", "project id filter")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	logRoot.AddCommand(tail)
	return logRoot
}

func tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "API credentials"}
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("BUILDMATCH_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("BUILDMATCH_JWT_SECRET is required")
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, e engine.Engine, p policy.Principal) error {
				now := time.Now()
				claims := jwt.MapClaims{
					"sub":  p.UserID,
					"role": string(p.Role),
					"name": p.FullName,
					"iat":  now.Unix(),
					"exp":  now.Add(ttl).Unix(),
				}
				if p.OrgID != "" {
					claims["org_id"] = p.OrgID
				}
				if p.ProfileID != "" {
					claims["profile_id"] = p.ProfileID
				}
				signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
				if err != nil {
					return err
				}
				fmt.Println(signed)
				return nil
			})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	tok.AddCommand(issue)
	return tok
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devAuth bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			e, conn, err := app.Open(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if _, err := app.EnsureAdmin(cmd.Context(), e); err != nil {
				return err
			}
			authCfg := server.AuthConfig{
				JWTSecret:        os.Getenv("BUILDMATCH_JWT_SECRET"),
				AllowActorHeader: devAuth,
			}
			if authCfg.JWTSecret == "" && !devAuth {
				return fmt.Errorf("BUILDMATCH_JWT_SECRET is required for bearer auth (or pass --dev-auth)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Buildmatch API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devAuth, "dev-auth", false, "trust the X-User-Id header (development only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

// withPrincipal resolves the acting user before running the command. With no
// --user flag the first admin identity is used, seeded on first run.
func withPrincipal(ctx context.Context, fn func(context.Context, engine.Engine, policy.Principal) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		userID := viper.GetString("user")
		var p policy.Principal
		if userID == "" {
			admin, err := app.EnsureAdmin(ctx, e)
			if err != nil {
				return err
			}
			p = policy.Principal{UserID: admin.ID, Role: admin.Role, FullName: admin.FullName, Source: "local"}
		} else {
			var err error
			p, err = app.ResolvePrincipal(ctx, e.Repo, userID)
			if err != nil {
				return err
			}
		}
		return fn(ctx, e, p)
	})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
