package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mersel/xslt-service/internal/assets"
	"github.com/mersel/xslt-service/internal/model"
	"github.com/mersel/xslt-service/internal/profile"
	"github.com/mersel/xslt-service/internal/syncer"
)

// ── Profiles ────────────────────────────────────────────────────────

func (s *Server) handleListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": s.profiles.List()})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	p, err := s.profiles.Get(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleSaveProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid profile body", Details: err.Error()})
		return
	}

	p := &profile.Profile{
		Name:            c.Param("name"),
		Description:     req.Description,
		Extends:         req.Extends,
		Suppressions:    req.Suppressions,
		XsdOverrides:    req.XsdOverrides,
		SchematronRules: req.SchematronRules,
	}
	if err := s.profiles.Save(p); err != nil {
		s.writeError(c, err)
		return
	}

	// Profile edits change merged rule sets and schema overrides, so
	// compiled artifacts keyed by profile must refresh.
	s.cache.Invalidate(model.KindRuleSet)
	s.cache.Invalidate(model.KindSchema)

	s.log.Info("profile saved", zap.String("profile", p.Name))
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(c *gin.Context) {
	name := c.Param("name")
	if err := s.profiles.Delete(name); err != nil {
		s.writeError(c, err)
		return
	}
	s.cache.Invalidate(model.KindRuleSet)
	s.cache.Invalidate(model.KindSchema)

	s.log.Info("profile deleted", zap.String("profile", name))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ── Global custom rules ─────────────────────────────────────────────

func (s *Server) handleGetGlobalRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.profiles.GlobalRules()})
}

func (s *Server) handleSaveGlobalRules(c *gin.Context) {
	var req GlobalRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid rules body", Details: err.Error()})
		return
	}
	if err := s.profiles.SaveGlobalRules(req.Rules); err != nil {
		s.writeError(c, err)
		return
	}
	s.cache.Invalidate(model.KindRuleSet)
	c.JSON(http.StatusOK, gin.H{"rules": s.profiles.GlobalRules()})
}

func (s *Server) handleDeleteGlobalRules(c *gin.Context) {
	if err := s.profiles.SaveGlobalRules(map[string][]profile.CustomRule{}); err != nil {
		s.writeError(c, err)
		return
	}
	s.cache.Invalidate(model.KindRuleSet)

	s.log.Info("global custom rules cleared")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ── Default templates ───────────────────────────────────────────────

func (s *Server) handleGetDefaultTemplate(c *gin.Context) {
	t, err := model.ParseTransformType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	data, err := s.store.Read(assets.TemplatePath(t))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no default template for " + string(t)})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

func (s *Server) handleSaveDefaultTemplate(c *gin.Context) {
	t, err := model.ParseTransformType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty template body"})
		return
	}
	if err := s.store.Write(assets.TemplatePath(t), body); err != nil {
		s.writeError(c, err)
		return
	}
	s.cache.Invalidate(model.KindTemplate)

	s.log.Info("default template replaced", zap.String("type", string(t)))
	c.JSON(http.StatusOK, gin.H{"status": "saved", "type": string(t)})
}

func (s *Server) handleDeleteDefaultTemplate(c *gin.Context) {
	t, err := model.ParseTransformType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	rel := assets.TemplatePath(t)
	if !s.store.Exists(rel) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no default template for " + string(t)})
		return
	}
	if err := s.store.Remove(rel); err != nil {
		s.writeError(c, err)
		return
	}
	s.cache.Invalidate(model.KindTemplate)

	s.log.Info("default template removed", zap.String("type", string(t)))
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "type": string(t)})
}

// ── Packages and sync ───────────────────────────────────────────────

func (s *Server) handleListPackages(c *gin.Context) {
	pkgs := syncer.Packages()
	out := make([]PackageInfo, 0, len(pkgs))
	for _, p := range pkgs {
		info := PackageInfo{ID: p.ID, DisplayName: p.DisplayName, URL: p.URL}
		if id, ok := s.syncer.PendingVersionID(p.ID); ok {
			info.PendingID = id
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"packages": out})
}

func (s *Server) handleSyncAll(c *gin.Context) {
	if !s.config.Sync.Enabled {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "package sync is disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": s.syncer.SyncAll(c.Request.Context())})
}

func (s *Server) handleSyncOne(c *gin.Context) {
	if !s.config.Sync.Enabled {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "package sync is disabled"})
		return
	}
	preview, err := s.syncer.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// ── Versions ────────────────────────────────────────────────────────

func (s *Server) handleListVersions(c *gin.Context) {
	versions, err := s.history.List(model.VersionStatus(c.Query("status")), 100)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (s *Server) handlePendingVersions(c *gin.Context) {
	versions, err := s.history.List(model.VersionPending, 100)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (s *Server) handleGetVersion(c *gin.Context) {
	v, err := s.history.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// handleVersionDiff returns the directory diff of a version, or one
// file's unified diff when a path is given. Pending versions diff
// staging against the live store; applied versions are served from
// the snapshots recorded at approval time.
func (s *Server) handleVersionDiff(c *gin.Context) {
	v, err := s.history.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	switch v.Status {
	case model.VersionPending:
		if path := c.Query("path"); path != "" {
			detail, err := syncer.FileDiff(s.store, v.PackageID, path)
			if err != nil {
				s.writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, detail)
			return
		}
		pkg, ok := syncer.PackageByID(v.PackageID)
		if !ok {
			s.writeError(c, model.ErrNotFound)
			return
		}
		files, err := syncer.DiffPackage(s.store, pkg)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"files": files})

	case model.VersionApplied:
		if path := c.Query("path"); path != "" {
			detail, err := syncer.SnapshotFileDiff(s.store, v.ID, path)
			if err != nil {
				s.writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, detail)
			return
		}
		files, err := syncer.SnapshotDiff(s.store, v.ID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"files": files})

	default:
		c.JSON(http.StatusConflict, ErrorResponse{Error: "staged content of a rejected version is discarded"})
	}
}

func (s *Server) handleApprove(c *gin.Context) {
	v, err := s.syncer.Approve(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleReject(c *gin.Context) {
	v, err := s.syncer.Reject(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ── Reload ──────────────────────────────────────────────────────────

func (s *Server) handleReload(c *gin.Context) {
	outcome, err := s.reloader.ReloadAll()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}
