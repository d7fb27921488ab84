package httpapi

import "net/http"

func (a *API) handleBranchList(w http.ResponseWriter, r *http.Request) {
	branches, err := a.deps.Units.ListBranches(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, branches, "view")
}

func (a *API) handleBranchGet(w http.ResponseWriter, r *http.Request) {
	branch, err := a.deps.Units.FindBranch(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, branch, "view")
}

func (a *API) handleCommitteeList(w http.ResponseWriter, r *http.Request) {
	committees, err := a.deps.Units.ListCommittees(r.Context(), r.URL.Query().Get("branch"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, committees, "view")
}

func (a *API) handleCommitteeGet(w http.ResponseWriter, r *http.Request) {
	committee, err := a.deps.Units.FindCommittee(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	setMedia(r, http.StatusOK, committee, "view")
}
