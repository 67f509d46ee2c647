package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/basketcase/api/responses"
	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

// writeFailure renders err and, for server-side failures, appends an API row to the error log.
func writeFailure(ctx context.Context, rec audit.Recorder, logg *logger.Logger, w http.ResponseWriter, action string, err error) {
	meta := pkgerrors.MetadataFor(pkgerrors.CodeOf(err))
	if rec != nil && meta.HTTPStatus >= http.StatusInternalServerError {
		if recErr := rec.Record(ctx, enums.ErrorLevelError, enums.ComponentAPI, action+" failed", err); recErr != nil && logg != nil {
			logg.Error(ctx, "failed to record api failure", recErr)
		}
	}
	responses.WriteError(ctx, logg, w, err)
}
