package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kestrelrun/marathoncast/internal/domain"
	"github.com/kestrelrun/marathoncast/internal/router"
	"github.com/kestrelrun/marathoncast/internal/store"
)

type api struct {
	store  *store.Store
	actors Actors
	log    *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreErr maps the domain error taxonomy onto HTTP status codes.
func writeStoreErr(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownLayout), errors.Is(err, domain.ErrViewTransform):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Error("httpapi: internal error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

// --- Participants (no owning actor; CRUD goes straight through the store) ---

func (a *api) listParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := a.store.ListParticipants(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *api) createParticipant(w http.ResponseWriter, r *http.Request) {
	var p domain.Participant
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	id, err := a.store.CreateParticipant(r.Context(), &p)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	p.ID = id
	writeJSON(w, http.StatusCreated, p)
}

func (a *api) getParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := a.store.GetParticipant(r.Context(), id)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) updateParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var p domain.Participant
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	p.ID = id
	if err := a.store.UpdateParticipant(r.Context(), &p); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := a.store.DeleteParticipant(r.Context(), id); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Runners (owned by the Runner Actor) ---

func (a *api) listRunners(w http.ResponseWriter, r *http.Request) {
	rs, err := a.store.ListRunners(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (a *api) createRunner(w http.ResponseWriter, r *http.Request) {
	var rn domain.Runner
	if err := json.NewDecoder(r.Body).Decode(&rn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := a.actors.Runners.Create(r.Context(), rn); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rn)
}

func (a *api) getRunner(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	rn, err := a.store.GetRunner(r.Context(), id)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

func (a *api) updateRunner(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var rn domain.Runner
	if err := json.NewDecoder(r.Body).Decode(&rn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	rn.ParticipantID = id
	if err := a.actors.Runners.Update(r.Context(), rn); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

func (a *api) deleteRunner(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := a.actors.Runners.Delete(r.Context(), id); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Events (owned by the Event Actor) ---

func (a *api) listEvents(w http.ResponseWriter, r *http.Request) {
	es, err := a.store.ListEvents(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, es)
}

func (a *api) createEvent(w http.ResponseWriter, r *http.Request) {
	var e domain.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	id, err := a.actors.Events.Create(r.Context(), e)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	e.ID = id
	writeJSON(w, http.StatusCreated, e)
}

func (a *api) getEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	e, err := a.store.GetEvent(r.Context(), id)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *api) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var e domain.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	e.ID = id
	if err := a.actors.Events.Update(r.Context(), e); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *api) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := a.actors.Events.Delete(r.Context(), id); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addRunnerToEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	runnerID, err := pathInt64(r, "runnerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid runner id")
		return
	}
	if err := a.actors.Events.AddRunner(r.Context(), eventID, runnerID); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) removeRunnerFromEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	runnerID, err := pathInt64(r, "runnerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid runner id")
		return
	}
	if err := a.actors.Events.RemoveRunner(r.Context(), eventID, runnerID); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Runs (read-only here; writes arrive via the Telemetry Poller) ---

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.ListRuns(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	runnerID, err := pathInt64(r, "runnerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid runner id")
		return
	}
	run, err := a.store.GetRun(r.Context(), runnerID)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// --- Layouts ---

func (a *api) listLayouts(w http.ResponseWriter, r *http.Request) {
	ls, err := a.store.ListLayouts(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (a *api) upsertLayout(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var l domain.Layout
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	l.Name = name
	if err := a.store.UpsertLayout(r.Context(), &l); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// --- Streams (owned by the Stream Actor) ---

func (a *api) listStreams(w http.ResponseWriter, r *http.Request) {
	ss, err := a.store.ListStreams(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (a *api) createStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventID  int64  `json:"eventId"`
		HostName string `json:"hostName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := a.actors.Streams.Create(r.Context(), body.EventID, body.HostName); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	st, err := a.store.GetStream(r.Context(), body.EventID)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (a *api) getStream(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt64(r, "eventId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	st, err := a.store.GetStream(r.Context(), eventID)
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) deleteStream(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathInt64(r, "eventId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	if err := a.actors.Streams.Delete(r.Context(), eventID); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Custom fields ---

func (a *api) listCustomFields(w http.ResponseWriter, r *http.Request) {
	fs, err := a.store.ListCustomFields(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (a *api) setCustomField(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := a.store.SetCustomField(r.Context(), key, body.Value); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Hosts (read-only live state) ---

func (a *api) listHostState(w http.ResponseWriter, r *http.Request) {
	state, err := a.actors.Hosts.GetState(r.Context())
	if err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// --- Command Router entry point ---

func (a *api) dispatchCommand(w http.ResponseWriter, r *http.Request) {
	var cmd router.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	if err := a.actors.Router.Dispatch(r.Context(), cmd); err != nil {
		writeStoreErr(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
