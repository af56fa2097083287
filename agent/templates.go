package agent

import "github.com/juju/errors"

// Builtin reusable definitions for the core software-team roles.
const (
	TemplatePM        = "pm_agent"
	TemplateArchitect = "architect_agent"
	TemplateDev       = "dev_agent"
	TemplateQA        = "qa_agent"
)

// Template returns a fresh copy of a builtin definition; callers may
// customize it freely.
func Template(name string) (*Definition, error) {
	builder, exists := builtinTemplates[name]
	if !exists {
		return nil, errors.NotFoundf("agent template %s", name)
	}
	return builder(), nil
}

func TemplateNames() []string {
	return []string{TemplatePM, TemplateArchitect, TemplateDev, TemplateQA}
}

var builtinTemplates = map[string]func() *Definition{
	TemplatePM:        pmTemplate,
	TemplateArchitect: architectTemplate,
	TemplateDev:       devTemplate,
	TemplateQA:        qaTemplate,
}

func pmTemplate() *Definition {
	def := NewDefinition(TemplatePM, "Product Manager")
	def.Backstory = "You are an experienced Product Manager with expertise in software product development. " +
		"You excel at understanding user needs, defining requirements, and ensuring the product " +
		"meets both business goals and user expectations."
	def.PromptTemplate = `Project: {{project_name}}

Your task is to define the requirements for this project based on the following description:

{{project_description}}

Please provide:
1. A clear project overview
2. User stories/requirements
3. Success criteria
4. Key features and priorities
5. Any constraints or considerations

Your output will be used by the Architecture Team to design the solution.`
	def.InputFormat = []string{"project_name", "project_description"}
	def.OutputFormat = []string{"project_overview", "user_stories", "success_criteria", "key_features", "constraints"}
	return def
}

func architectTemplate() *Definition {
	def := NewDefinition(TemplateArchitect, "Solution Architect")
	def.Backstory = "You are a skilled Solution Architect with deep experience in software design patterns, " +
		"system architecture, and technical planning. You excel at translating requirements into " +
		"robust technical designs."
	def.PromptTemplate = `Project: {{project_name}}

Based on the following requirements defined by the Product Manager:

{{requirements}}

Please design a system architecture that addresses these requirements. Include:
1. High-level architecture overview
2. Component diagram
3. Data model
4. API specifications
5. Technology stack recommendations
6. Key design decisions and their rationales`
	def.InputFormat = []string{"project_name", "requirements"}
	def.OutputFormat = []string{"architecture_overview", "components", "data_model", "api_specs", "technology_stack", "design_decisions"}
	return def
}

func devTemplate() *Definition {
	def := NewDefinition(TemplateDev, "Senior Software Developer")
	def.Backstory = "You are an experienced software developer proficient in multiple programming languages " +
		"and frameworks. You write clean, maintainable, and well-documented code following best practices."
	def.PromptTemplate = `Project: {{project_name}}

Based on the following architecture design:

{{architecture}}

And these specific requirements:

{{component_requirements}}

Please implement the code for the {{component_name}} component. Your code should be:
- Well-structured
- Following best practices for the language/framework
- Properly commented
- Testable
- Error-handled

Include any necessary explanations about implementation decisions.`
	def.InputFormat = []string{"project_name", "architecture", "component_requirements", "component_name"}
	def.OutputFormat = []string{"files", "implementation_notes", "dependencies"}
	return def
}

func qaTemplate() *Definition {
	def := NewDefinition(TemplateQA, "QA Engineer")
	def.Backstory = "You are a detail-oriented Quality Assurance Engineer with expertise in software testing " +
		"methodologies. You excel at finding edge cases, writing comprehensive tests, and ensuring " +
		"software quality."
	def.PromptTemplate = `Project: {{project_name}}

Based on the following component implementation:

{{component_code}}

And these requirements:

{{component_requirements}}

Please create a comprehensive test suite for this component. Include:
1. Unit tests covering the main paths and edge cases
2. Integration tests where components interact
3. A short test strategy describing coverage and gaps
4. Any defects or risks you spot in the implementation`
	def.InputFormat = []string{"project_name", "component_code", "component_requirements"}
	def.OutputFormat = []string{"test_files", "test_strategy", "issues_found"}
	return def
}
