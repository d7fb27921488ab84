package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"peterboroughtenants.org/internal/audit"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/member"
)

func (a *API) handleContactList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	contacts, err := a.deps.Contacts.List(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, contacts, "view")
}

func (a *API) handleContactGet(w http.ResponseWriter, r *http.Request) {
	contact, err := a.deps.Contacts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, contact, "view")
}

type contactCreateRequest struct {
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	OtherNames     string `json:"other_names"`
	Pronouns       string `json:"pronouns"`
	Email          string `json:"email"`
	MembershipType string `json:"membership_type"`
	DateOfBirth    string `json:"date_of_birth"`
	Password       string `json:"password"`
}

func (a *API) handleContactCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := member.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.deps.Eval.HasRole(p, member.RoleGlobalAdmin, nil); err != nil {
		handleError(w, r, err)
		return
	}

	var req contactCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	contact := &directory.Contact{
		GivenName:      req.GivenName,
		FamilyName:     req.FamilyName,
		OtherNames:     req.OtherNames,
		Pronouns:       req.Pronouns,
		PreferredEmail: req.Email,
		MembershipType: req.MembershipType,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
			return
		}
		contact.DateOfBirth = dob
	}

	created, err := a.deps.Contacts.Create(r.Context(), contact, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "contact.created", map[string]any{
		"contact": created.ID,
	})
	a.notifyContact(r.Context(), created, "Welcome to the union", "welcome",
		map[string]string{
			"name":              created.Name(),
			"membership_number": created.MembershipNumber,
		})

	setMedia(r, http.StatusCreated, created, "view")
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handlePasswordChange sets a new password for a contact. Contacts change
// their own with the current password as proof; administrators may reset
// anyone's without it. Every session belonging to the contact is cleared
// afterwards, the current one included.
func (a *API) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	p, ok := member.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	isSelf := p.ID == id
	isAdmin := member.Allowed(a.deps.Eval.HasRole(p, member.RoleGlobalAdmin, nil))
	if !isSelf && !isAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	var req passwordChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.NewPassword) < 10 {
		writeError(w, r, http.StatusBadRequest, "new password must be at least 10 characters")
		return
	}

	if isSelf && !isAdmin {
		if err := a.deps.Contacts.CheckPassword(r.Context(), id, req.CurrentPassword); err != nil {
			if errors.Is(err, directory.ErrUnauthorized) {
				writeError(w, r, http.StatusForbidden, "current password is incorrect")
				return
			}
			handleError(w, r, err)
			return
		}
	}

	if err := a.deps.Contacts.ChangePassword(r.Context(), id, req.NewPassword); err != nil {
		handleError(w, r, err)
		return
	}
	cleared, err := a.deps.Sessions.ClearSessions(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if isSelf {
		a.clearSessionCookie(w)
	}
	_ = audit.LogEvent(r.Context(), "contact.password_changed", map[string]any{
		"contact": id, "sessions_cleared": cleared,
	})

	if contact, err := a.deps.Contacts.Get(r.Context(), id); err == nil {
		a.notifyContact(r.Context(), contact, "Your password was changed", "password_changed",
			map[string]string{"name": contact.Name()})
	}

	w.WriteHeader(http.StatusNoContent)
}
