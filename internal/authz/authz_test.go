package authz

import (
	"context"
	"testing"

	"github.com/nocodo/manager/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestCheckPermission_OwnerHasAutomaticPermissions(t *testing.T) {
	store := NewMemoryStore()
	store.AddOwnership(models.ResourceProject, "5", "alice")
	engine := New(store)
	ctx := context.Background()

	for _, action := range []models.Action{models.ActionRead, models.ActionWrite, models.ActionDelete} {
		ok, err := engine.CheckPermission(ctx, "alice", models.ResourceProject, strPtr("5"), action)
		if err != nil || !ok {
			t.Errorf("owner should have %s, got %v err=%v", action, ok, err)
		}
	}
	ok, err := engine.CheckPermission(ctx, "alice", models.ResourceProject, strPtr("5"), models.ActionAdmin)
	if err != nil || ok {
		t.Errorf("ownership should not grant admin, got %v err=%v", ok, err)
	}
}

func TestCheckPermission_TeamMemberInheritsPermission(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("team1", "bob")
	store.Grant(models.Permission{TeamID: "team1", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionWrite})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "bob", models.ResourceProject, strPtr("5"), models.ActionWrite); !ok {
		t.Error("expected write via team permission")
	}
	if ok, _ := engine.CheckPermission(ctx, "bob", models.ResourceProject, strPtr("5"), models.ActionRead); !ok {
		t.Error("expected write to imply read")
	}
}

func TestCheckPermission_EntityLevelPermission(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("admins", "charlie")
	store.Grant(models.Permission{TeamID: "admins", ResourceType: models.ResourceProject, ResourceID: nil, Action: models.ActionAdmin})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "charlie", models.ResourceProject, strPtr("1"), models.ActionAdmin); !ok {
		t.Error("expected entity-level admin to cover project 1")
	}
	if ok, _ := engine.CheckPermission(ctx, "charlie", models.ResourceProject, strPtr("999"), models.ActionAdmin); !ok {
		t.Error("expected entity-level admin to cover any project")
	}
}

func TestCheckPermission_ActionHierarchy(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("team", "diana")
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionAdmin})
	engine := New(store)
	ctx := context.Background()

	for _, action := range []models.Action{models.ActionAdmin, models.ActionWrite, models.ActionRead, models.ActionDelete} {
		if ok, _ := engine.CheckPermission(ctx, "diana", models.ResourceProject, strPtr("5"), action); !ok {
			t.Errorf("admin should imply %s", action)
		}
	}
}

func TestCheckPermission_NoPermissionDenied(t *testing.T) {
	store := NewMemoryStore()
	engine := New(store)
	ok, err := engine.CheckPermission(context.Background(), "eve", models.ResourceProject, strPtr("5"), models.ActionRead)
	if err != nil || ok {
		t.Errorf("expected denial with no teams or ownership, got %v err=%v", ok, err)
	}
}

func TestCheckPermission_UnknownUserDenied(t *testing.T) {
	store := NewMemoryStore()
	engine := New(store)
	ok, err := engine.CheckPermission(context.Background(), "", models.ResourceProject, strPtr("5"), models.ActionRead)
	if err != nil || ok {
		t.Errorf("expected denial for unknown/empty user, got %v err=%v", ok, err)
	}
}

func TestCheckPermission_MultipleTeamMemberships(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("team1", "frank")
	store.AddTeamMember("team2", "frank")
	store.Grant(models.Permission{TeamID: "team1", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionRead})
	store.Grant(models.Permission{TeamID: "team2", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionWrite})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "frank", models.ResourceProject, strPtr("5"), models.ActionWrite); !ok {
		t.Error("expected write from team2's grant")
	}
	if ok, _ := engine.CheckPermission(ctx, "frank", models.ResourceProject, strPtr("5"), models.ActionRead); !ok {
		t.Error("expected read from either team's grant")
	}
}

func TestCheckPermission_WriteImpliesReadNotDeleteOrAdmin(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("team", "grace")
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionWrite})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "grace", models.ResourceProject, strPtr("5"), models.ActionRead); !ok {
		t.Error("write should imply read")
	}
	if ok, _ := engine.CheckPermission(ctx, "grace", models.ResourceProject, strPtr("5"), models.ActionDelete); ok {
		t.Error("write should not imply delete")
	}
	if ok, _ := engine.CheckPermission(ctx, "grace", models.ResourceProject, strPtr("5"), models.ActionAdmin); ok {
		t.Error("write should not imply admin")
	}
}

func TestCheckPermission_ResourceSpecificVsEntityLevel(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("team", "iris")
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: nil, Action: models.ActionRead})
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionWrite})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "iris", models.ResourceProject, strPtr("5"), models.ActionWrite); !ok {
		t.Error("expected write on project 5 specifically")
	}
	if ok, _ := engine.CheckPermission(ctx, "iris", models.ResourceProject, strPtr("999"), models.ActionRead); !ok {
		t.Error("expected read on any other project via entity-level grant")
	}
	if ok, _ := engine.CheckPermission(ctx, "iris", models.ResourceProject, strPtr("999"), models.ActionWrite); ok {
		t.Error("did not expect write on a project with only entity-level read")
	}
}

func TestCheckPermission_HierarchicalProjectInheritance(t *testing.T) {
	store := NewMemoryStore()
	store.PutProject(models.Project{ID: "5", ParentID: nil})
	store.PutProject(models.Project{ID: "10", ParentID: strPtr("5")})
	store.AddTeamMember("team", "kevin")
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionWrite})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "kevin", models.ResourceProject, strPtr("5"), models.ActionWrite); !ok {
		t.Error("expected direct write on parent project")
	}
	if ok, _ := engine.CheckPermission(ctx, "kevin", models.ResourceProject, strPtr("10"), models.ActionWrite); !ok {
		t.Error("expected inherited write on child project")
	}
	if ok, _ := engine.CheckPermission(ctx, "kevin", models.ResourceProject, strPtr("10"), models.ActionRead); !ok {
		t.Error("expected inherited write to imply read on child project")
	}
}

func TestCheckPermission_HierarchicalWalkStopsOnCycle(t *testing.T) {
	store := NewMemoryStore()
	store.PutProject(models.Project{ID: "a", ParentID: strPtr("b")})
	store.PutProject(models.Project{ID: "b", ParentID: strPtr("a")})
	store.AddTeamMember("team", "mallory")
	engine := New(store)

	ok, err := engine.CheckPermission(context.Background(), "mallory", models.ResourceProject, strPtr("a"), models.ActionRead)
	if err != nil {
		t.Fatalf("cyclic project chain should not error: %v", err)
	}
	if ok {
		t.Error("expected denial when no permission exists anywhere in a cyclic chain")
	}
}

func TestCheckPermission_OwnershipAndTeamDeletionCascade(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("team", "judy")
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: strPtr("5"), Action: models.ActionWrite})
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "judy", models.ResourceProject, strPtr("5"), models.ActionWrite); !ok {
		t.Fatal("expected permission before team deletion")
	}

	store.DeleteTeam("team")

	if ok, _ := engine.CheckPermission(ctx, "judy", models.ResourceProject, strPtr("5"), models.ActionWrite); ok {
		t.Error("expected permission denied after team deletion")
	}
}

func TestCheckPermission_OwnershipRemovedWithResource(t *testing.T) {
	store := NewMemoryStore()
	store.AddOwnership(models.ResourceProject, "15", "lisa")
	engine := New(store)
	ctx := context.Background()

	if ok, _ := engine.CheckPermission(ctx, "lisa", models.ResourceProject, strPtr("15"), models.ActionRead); !ok {
		t.Fatal("expected ownership-derived read before resource deletion")
	}

	store.RemoveOwnershipForResource(models.ResourceProject, "15")

	if ok, _ := engine.CheckPermission(ctx, "lisa", models.ResourceProject, strPtr("15"), models.ActionRead); ok {
		t.Error("expected denial after ownership row removed")
	}
}

func TestCheckPermission_BootstrapGrantsAllResourceTypes(t *testing.T) {
	store := NewMemoryStore()
	store.AddTeamMember("super-admins", "admin")
	for _, rt := range models.AllResourceTypes {
		store.Grant(models.Permission{TeamID: "super-admins", ResourceType: rt, ResourceID: nil, Action: models.ActionAdmin})
	}
	engine := New(store)
	ctx := context.Background()

	for _, rt := range models.AllResourceTypes {
		ok, err := engine.CheckPermission(ctx, "admin", rt, strPtr("anything"), models.ActionAdmin)
		if err != nil || !ok {
			t.Errorf("bootstrap admin should cover %s, got %v err=%v", rt, ok, err)
		}
	}
}
