package modkit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/testutil"
)

// resolutionBDDContext holds the state of one resolution scenario.
type resolutionBDDContext struct {
	scenario *testutil.Scenario
	registry *modkit.ModuleRegistry
	results  []any
	lastErr  error
}

func (c *resolutionBDDContext) moduleMBProvides(module, tokA, valA, tokB, valB string) error {
	if c.scenario == nil {
		c.scenario = testutil.NewScenario()
	}
	if module != "MB" {
		return fmt.Errorf("unknown module %q", module)
	}
	for tok, want := range map[string]string{tokA: valA, tokB: valB} {
		p, ok := c.providerIn(c.scenario.MB, modkit.NewToken(tok))
		if !ok {
			return fmt.Errorf("module MB does not provide %q", tok)
		}
		v, err := p.Factory(context.Background(), nil)
		if err != nil {
			return err
		}
		if v != want {
			return fmt.Errorf("%q is %v, want %q", tok, v, want)
		}
	}
	return nil
}

func (c *resolutionBDDContext) moduleMAProvides(module, tokA, tokB string) error {
	if module != "MA" {
		return fmt.Errorf("unknown module %q", module)
	}
	deps, ok := c.scenario.Meta.InjectableDescriptor(c.scenario.IA.Type())
	if !ok || len(deps.Deps) != 2 {
		return errors.New("IA does not declare two dependencies")
	}
	if deps.Deps[0] != modkit.NewToken(tokA) || deps.Deps[1] != modkit.NewToken(tokB) {
		return fmt.Errorf("IA depends on %v", deps.Deps)
	}
	if _, ok := c.providerIn(c.scenario.MA, c.scenario.IB.Token()); !ok {
		return errors.New("module MA does not provide IB")
	}
	return nil
}

func (c *resolutionBDDContext) rootImports(first, second string) error {
	desc, ok := c.scenario.Meta.ModuleDescriptor(c.scenario.Root.Type())
	if !ok || len(desc.Imports) != 2 {
		return errors.New("root module does not import two modules")
	}
	if desc.Imports[0] != c.scenario.MA || desc.Imports[1] != c.scenario.MB {
		return fmt.Errorf("root imports %v, want %s then %s", desc.Imports, first, second)
	}
	c.registry = modkit.NewModuleRegistry(c.scenario.Meta)
	return nil
}

func (c *resolutionBDDContext) providerIn(module modkit.Class, tok modkit.Token) (modkit.Provider, bool) {
	inj, err := modkit.NewModuleRegistry(c.scenario.Meta).Injector(module)
	if err != nil {
		return modkit.Provider{}, false
	}
	return inj.Provider(tok)
}

func (c *resolutionBDDContext) resolveFrom(module modkit.Class, tok modkit.Token) error {
	inj, err := c.registry.Injector(module)
	if err != nil {
		return err
	}
	v, err := inj.Resolve(context.Background(), tok)
	c.lastErr = err
	if err == nil {
		c.results = append(c.results, v)
	}
	return nil
}

func (c *resolutionBDDContext) iResolveIBFromRoot() error {
	return c.resolveFrom(c.scenario.Root, c.scenario.IB.Token())
}

func (c *resolutionBDDContext) iResolveIAFrom(module string) error {
	if module != "MA" {
		return fmt.Errorf("unknown module %q", module)
	}
	return c.resolveFrom(c.scenario.MA, c.scenario.IA.Token())
}

func (c *resolutionBDDContext) iResolveTokenFromRoot(name string) error {
	return c.resolveFrom(c.scenario.Root, modkit.NewToken(name))
}

func (c *resolutionBDDContext) theResolutionShouldSucceed() error {
	return c.lastErr
}

func (c *resolutionBDDContext) ibShouldHoldIA(da, db string) error {
	if len(c.results) == 0 {
		return errors.New("nothing was resolved")
	}
	ib, ok := c.results[len(c.results)-1].(*testutil.IB)
	if !ok || ib.IA == nil {
		return fmt.Errorf("resolved %T, want *IB with an IA", c.results[len(c.results)-1])
	}
	if ib.IA.DA != da || ib.IA.DB != db {
		return fmt.Errorf("IA holds %q and %q", ib.IA.DA, ib.IA.DB)
	}
	return nil
}

func (c *resolutionBDDContext) bothResolutionsShouldBeSame() error {
	if len(c.results) != 2 {
		return fmt.Errorf("expected 2 results, got %d", len(c.results))
	}
	if c.results[0] != c.results[1] {
		return errors.New("resolutions returned different instances")
	}
	return nil
}

func (c *resolutionBDDContext) shouldFailWithNotFound(name string) error {
	if c.lastErr == nil {
		return errors.New("resolution succeeded")
	}
	var nf modkit.NotFoundError
	if !errors.As(c.lastErr, &nf) {
		return fmt.Errorf("expected a not found error, got: %w", c.lastErr)
	}
	if nf.Token != modkit.NewToken(name) {
		return fmt.Errorf("not found error names %s, want %q", nf.Token, name)
	}
	return nil
}

// commandBDDContext holds the state of one command scenario.
type commandBDDContext struct {
	table  *modkit.CommandTable
	output any
	err    error
}

func (c *commandBDDContext) theToolIsCompiled() error {
	meta, root := testutil.NewTool()
	app, err := modkit.Compile(context.Background(), meta, root)
	if err != nil {
		return err
	}
	c.table, err = modkit.LinkCommands(app)
	return err
}

func (c *commandBDDContext) iRun(name string) error {
	c.output, c.err = c.table.Dispatch(context.Background(), modkit.Args{Positional: []string{name}})
	return nil
}

func (c *commandBDDContext) iRunWithFlag(name, flag, value string) error {
	c.output, c.err = c.table.Dispatch(context.Background(), modkit.Args{
		Positional: []string{name},
		Flags:      map[string]string{flag: value},
	})
	return nil
}

func (c *commandBDDContext) theOutputShouldBe(want string) error {
	if c.err != nil {
		return c.err
	}
	if c.output != want {
		return fmt.Errorf("output is %v, want %q", c.output, want)
	}
	return nil
}

func (c *commandBDDContext) shouldFailWithNoCommand() error {
	if !errors.Is(c.err, modkit.ErrNoCommandFound) {
		return fmt.Errorf("expected no command found, got: %v", c.err)
	}
	return nil
}

func TestModkitBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			res := &resolutionBDDContext{}
			cmd := &commandBDDContext{}

			// Resolution
			ctx.Step(`^module "([^"]*)" provides "([^"]*)" as "([^"]*)" and "([^"]*)" as "([^"]*)"$`, res.moduleMBProvides)
			ctx.Step(`^module "([^"]*)" provides IA depending on "([^"]*)" and "([^"]*)" and IB depending on IA$`, res.moduleMAProvides)
			ctx.Step(`^the root module imports "([^"]*)" then "([^"]*)"$`, res.rootImports)
			ctx.Step(`^I resolve IB from the root module$`, res.iResolveIBFromRoot)
			ctx.Step(`^I resolve IB from the root module again$`, res.iResolveIBFromRoot)
			ctx.Step(`^I resolve IA from module "([^"]*)"$`, res.iResolveIAFrom)
			ctx.Step(`^I resolve the token "([^"]*)" from the root module$`, res.iResolveTokenFromRoot)
			ctx.Step(`^the resolution should succeed$`, res.theResolutionShouldSucceed)
			ctx.Step(`^IB should hold an IA with "([^"]*)" and "([^"]*)"$`, res.ibShouldHoldIA)
			ctx.Step(`^both resolutions should return the same instance$`, res.bothResolutionsShouldBeSame)
			ctx.Step(`^the resolution should fail with a not found error for "([^"]*)"$`, res.shouldFailWithNotFound)

			// Commands
			ctx.Step(`^the tool application is compiled$`, cmd.theToolIsCompiled)
			ctx.Step(`^I run "([^"]*)"$`, cmd.iRun)
			ctx.Step(`^I run "([^"]*)" with flag "([^"]*)" set to "([^"]*)"$`, cmd.iRunWithFlag)
			ctx.Step(`^the output should be "([^"]*)"$`, cmd.theOutputShouldBe)
			ctx.Step(`^the command should fail with no command found$`, cmd.shouldFailWithNoCommand)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
