// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	JobSpecInvalidId Id = iota + 1
	ProjectFetchFailedId
	ModuleInstallFailedId
	EngineNotFoundId
	ArtifactWriteFailedId
	OutputSinkFailedId
	ConfigLoadFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the issue's markdown with the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	jobSpecInvalidIssue = &Issue{
		id: JobSpecInvalidId,
		mdMsg: `
# The job specification was rejected

Nothing was provisioned or executed.

## Required fields
- ` + "`project.type`" + `: one of ` + "`tarball`" + ` or ` + "`git`" + `
- ` + "`project.source`" + `: archive URL or repository URL
- ` + "`type`" + `: one of ` + "`task`" + `, ` + "`plan`" + ` or ` + "`apply`" + `
- ` + "`name`" + `: the task, plan or class to run

## Things you can try
~~~
$ boltstep validate --spec job.yaml
~~~`,
		docLinks: []HttpLink{"https://www.puppet.com/docs/bolt/latest/bolt_command_reference"},
	}

	projectFetchFailedIssue = &Issue{
		id: ProjectFetchFailedId,
		mdMsg: `
# The project could not be provisioned

## Things you can try
- For ` + "`git`" + ` projects, check that ` + "`project.connection.sshKey`" + ` is a private key with read access
- Check that ` + "`project.version`" + ` names an existing branch, tag or commit
- For ` + "`tarball`" + ` projects, check that the URL is reachable and serves a tar archive`,
	}

	moduleInstallFailedIssue = &Issue{
		id: ModuleInstallFailedId,
		mdMsg: `
# Project modules could not be installed

The engine's module installer failed inside the provisioned project.

## Things you can try
- Check the ` + "`modules`" + ` list in ` + "`bolt-project.yaml`" + `
- Re-run with ` + "`--verbose --keep-workspace`" + ` and inspect the project directory`,
		docLinks: []HttpLink{"https://www.puppet.com/docs/bolt/latest/bolt_installing_modules"},
	}

	engineNotFoundIssue = &Issue{
		id: EngineNotFoundId,
		mdMsg: `
# The automation engine could not be started

## Things you can try
- Install Puppet Bolt and make sure ` + "`bolt`" + ` is on PATH
- Or point boltstep at the binary:
~~~
$ export BOLTSTEP_ENGINE_BINARY=/opt/puppetlabs/bin/bolt
~~~`,
	}

	artifactWriteFailedIssue = &Issue{
		id: ArtifactWriteFailedId,
		mdMsg: `
# Run artifacts could not be written

The inventory, parameters, targets or engine configuration file could not be
written to the run workspace.

## Things you can try
- Check free space and permissions of the workspace directory (` + "`workspace.dir`" + `)`,
	}

	outputSinkFailedIssue = &Issue{
		id: OutputSinkFailedId,
		mdMsg: `
# The run output could not be published

The engine ran, but its output could not be delivered to the configured sink.

## Things you can try
- Check ` + "`--output`" + ` and, for the metadata sink, ` + "`metadata.url`" + ``,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# The boltstep configuration file is invalid

## Things you can try
~~~
$ boltstep config show
~~~`,
	}

	issues = map[Id]*Issue{
		jobSpecInvalidIssue.Id():      jobSpecInvalidIssue,
		projectFetchFailedIssue.Id():  projectFetchFailedIssue,
		moduleInstallFailedIssue.Id(): moduleInstallFailedIssue,
		engineNotFoundIssue.Id():      engineNotFoundIssue,
		artifactWriteFailedIssue.Id(): artifactWriteFailedIssue,
		outputSinkFailedIssue.Id():    outputSinkFailedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}
)

func Values() []*Issue {
	return slices.Collect(maps.Values(issues))
}

func Get(id Id) *Issue {
	return issues[id]
}
