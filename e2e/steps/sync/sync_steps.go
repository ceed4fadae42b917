package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	DELETE(path string) error
	GetResponseField(field string) (interface{}, error)
	ID(alias string) string
	Save(key string, value any)
	Saved(key string) (any, bool)
}

// RegisterSteps registers sync-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &syncSteps{tc: tc}

	// Upsert steps
	ctx.Step(`^I upsert course "([^"]*)" named "([^"]*)"$`, steps.upsertCourse)
	ctx.Step(`^I upsert course "([^"]*)" named "([^"]*)" with version (\d+)$`, steps.upsertCourseWithVersion)
	ctx.Step(`^I upsert user "([^"]*)" with email "([^"]*)"$`, steps.upsertUser)
	ctx.Step(`^I record attendance "([^"]*)" for user "([^"]*)" in course "([^"]*)" at "([^"]*)"$`, steps.recordAttendance)
	ctx.Step(`^I upsert "([^"]*)" record "([^"]*)" with data:$`, steps.upsertGeneric)
	ctx.Step(`^I delete "([^"]*)" record "([^"]*)"$`, steps.deleteRecord)

	// Version bookkeeping
	ctx.Step(`^I save the returned version$`, steps.saveVersion)
	ctx.Step(`^the returned version should be (\d+)$`, steps.versionShouldBe)
	ctx.Step(`^the returned version should be one more than the saved version$`, steps.versionShouldBeNext)
	ctx.Step(`^the returned id should be "([^"]*)"$`, steps.idShouldBe)
}

type syncSteps struct {
	tc TestContext
}

func (s *syncSteps) upsertCourse(ctx context.Context, alias, name string) error {
	return s.tc.POST("/sync/courses/upsert", map[string]interface{}{
		"id":   s.tc.ID(alias),
		"name": name,
	})
}

func (s *syncSteps) upsertCourseWithVersion(ctx context.Context, alias, name string, version int) error {
	return s.tc.POST("/sync/courses/upsert", map[string]interface{}{
		"id":      s.tc.ID(alias),
		"name":    name,
		"version": version,
	})
}

func (s *syncSteps) upsertUser(ctx context.Context, alias, email string) error {
	return s.tc.POST("/sync/users/upsert", map[string]interface{}{
		"id":    s.tc.ID(alias),
		"email": email,
	})
}

func (s *syncSteps) recordAttendance(ctx context.Context, alias, user, course, ts string) error {
	return s.tc.POST("/sync/attendance/upsert", map[string]interface{}{
		"id":       s.tc.ID(alias),
		"userId":   s.tc.ID(user),
		"courseId": s.tc.ID(course),
		"tsUtc":    ts,
	})
}

func (s *syncSteps) upsertGeneric(ctx context.Context, collection, alias string, data *godog.DocString) error {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(data.Content), &fields); err != nil {
		return fmt.Errorf("scenario data is not a JSON object: %w", err)
	}
	return s.tc.POST("/sync/"+collection+"/upsert", map[string]interface{}{
		"id":   s.tc.ID(alias),
		"data": fields,
	})
}

func (s *syncSteps) deleteRecord(ctx context.Context, collection, alias string) error {
	return s.tc.DELETE("/sync/" + collection + "/" + s.tc.ID(alias))
}

func (s *syncSteps) returnedVersion() (int64, error) {
	v, err := s.tc.GetResponseField("version")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(fmt.Sprint(v), 10, 64)
}

func (s *syncSteps) saveVersion(ctx context.Context) error {
	v, err := s.returnedVersion()
	if err != nil {
		return err
	}
	s.tc.Save("version", v)
	return nil
}

func (s *syncSteps) versionShouldBe(ctx context.Context, want int) error {
	got, err := s.returnedVersion()
	if err != nil {
		return err
	}
	if got != int64(want) {
		return fmt.Errorf("expected version %d, got %d", want, got)
	}
	return nil
}

func (s *syncSteps) versionShouldBeNext(ctx context.Context) error {
	saved, ok := s.tc.Saved("version")
	if !ok {
		return fmt.Errorf("no version was saved")
	}
	got, err := s.returnedVersion()
	if err != nil {
		return err
	}
	if want := saved.(int64) + 1; got != want {
		return fmt.Errorf("expected version %d, got %d", want, got)
	}
	return nil
}

func (s *syncSteps) idShouldBe(ctx context.Context, alias string) error {
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	if got, want := fmt.Sprint(v), s.tc.ID(alias); got != want {
		return fmt.Errorf("expected id %q, got %q", want, got)
	}
	return nil
}
