package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"buildmatch/internal/domain"
	"buildmatch/internal/engine"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		proj, err := e.CreateProject(ctx, p, engine.ProjectCreateOptions{
			Title:          input.Body.Title,
			Description:    stringOrEmpty(input.Body.Description),
			SiteAddress:    input.Body.SiteAddress,
			LocalAuthority: input.Body.LocalAuthority,
			UnitsPlanned:   input.Body.UnitsPlanned,
			BudgetEstimate: input.Body.BudgetEstimate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(proj)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		items, err := e.ListProjects(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectDetailResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		view, err := e.GetProjectView(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectDetailResponse `json:"body"`
		}{Body: projectDetailResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-project-stage",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/stage",
		Summary:     "Set delivery stage",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Body      SetStageRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		proj, err := e.SetStage(ctx, p, input.ProjectID, domain.RIBAStage(input.Body.Stage))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(proj)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		opts := engine.TaskCreateOptions{
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			DueDate:     input.Body.DueDate,
			AssigneeID:  input.Body.AssigneeID,
		}
		if input.Body.Status != nil {
			opts.Status = domain.TaskStatus(*input.Body.Status)
		}
		if input.Body.RIBAStage != nil {
			stage := domain.RIBAStage(*input.Body.RIBAStage)
			opts.RIBAStage = &stage
		}
		t, err := e.CreateTask(ctx, p, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List board tasks",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		if _, serr := requirePrincipal(ctx); serr != nil {
			return nil, serr
		}
		items, err := e.ListTasks(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTaskEntries(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "Reposition a task on the board",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Body      MoveTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		opts := engine.TaskMoveOptions{
			ProjectID:  input.ProjectID,
			TaskID:     input.Body.TaskID,
			OrderIndex: input.Body.OrderIndex,
		}
		if input.Body.Status != nil {
			status := domain.TaskStatus(*input.Body.Status)
			opts.Status = &status
		}
		t, err := e.MoveTask(ctx, p, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "reindex-tasks",
		Method:        http.MethodPut,
		Path:          "/projects/{project_id}/tasks/reindex",
		Summary:       "Rewrite a status column to a contiguous order",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		Body      ReindexRequest `json:"body"`
	}) (*struct{}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		err := e.ReindexPartition(ctx, p, input.ProjectID, domain.TaskStatus(input.Body.Status), input.Body.TaskIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTender(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-bid",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/apply",
		Summary:       "Apply to a project tender",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      SubmitBidRequest `json:"body"`
	}) (*struct {
		Body BidResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		b, err := e.SubmitBid(ctx, p, engine.BidSubmitOptions{
			ProjectID:        input.ProjectID,
			ProposalText:     input.Body.ProposalText,
			FeeProposal:      input.Body.FeeProposal,
			Methodology:      input.Body.Methodology,
			Timeline:         input.Body.Timeline,
			QualificationIDs: input.Body.QualificationIDs,
			PortfolioIDs:     input.Body.PortfolioIDs,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BidResponse `json:"body"`
		}{Body: bidResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bid-count",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/bid-count",
		Summary:     "Count bids on a project",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body BidCountResponse `json:"body"`
	}, error) {
		if _, serr := requirePrincipal(ctx); serr != nil {
			return nil, serr
		}
		n, err := e.CountBids(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BidCountResponse `json:"body"`
		}{Body: BidCountResponse{ProjectID: input.ProjectID, Count: n}}, nil
	})
}

func registerNominations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "nominate-professional",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/nominate",
		Summary:       "Nominate a professional to the project roster",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Body      NominateRequest `json:"body"`
	}) (*struct {
		Body NominationResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		n, err := e.Nominate(ctx, p, input.ProjectID, input.Body.ProfessionalID, input.Body.RoleDescription)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NominationResponse `json:"body"`
		}{Body: NominationResponse{
			ID:              n.ID,
			ProjectID:       n.ProjectID,
			ProfessionalID:  n.ProfessionalID,
			RoleDescription: n.RoleDescription,
			AppointedAt:     n.AppointedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-nomination",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/nominate/{assignment_id}",
		Summary:       "Remove a roster assignment",
		DefaultStatus: http.StatusOK,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body struct {
			Status string `json:"status" example:"removed"`
		}
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		if err := e.RemoveNomination(ctx, p, input.ProjectID, input.AssignmentID); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Status string `json:"status" example:"removed"`
			}
		}{}
		out.Body.Status = "removed"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-roster",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/roster",
		Summary:     "View the project staffing roster",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []NominationResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		roster, err := e.Roster(ctx, p, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NominationResponse `json:"body"`
		}{Body: mapNominations(roster)}, nil
	})
}

func registerDirectory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "directory",
		Method:      http.MethodGet,
		Path:        "/directory",
		Summary:     "Browse the professional directory",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProfileResponse `json:"body"`
	}, error) {
		if _, serr := requirePrincipal(ctx); serr != nil {
			return nil, serr
		}
		items, err := e.Directory(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProfileResponse `json:"body"`
		}{Body: mapProfiles(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-professional",
		Method:      http.MethodGet,
		Path:        "/directory/{professional_id}",
		Summary:     "Get a professional profile",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProfessionalID string `path:"professional_id"`
	}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		if _, serr := requirePrincipal(ctx); serr != nil {
			return nil, serr
		}
		p, err := e.GetProfessional(ctx, input.ProfessionalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: profileResponse(p)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "project-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "Recent audit events for a project",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Limit     int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		p, serr := requirePrincipal(ctx)
		if serr != nil {
			return nil, serr
		}
		items, err := e.ProjectEvents(ctx, p, input.ProjectID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
