package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

func (r *Registry) registerPolicyTools() {
	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "policy_qa",
			Desc: "Answer questions about corporate travel policy using retrieval over the policy documents. Returns the answer with source citations.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"question": {Type: schema.String, Desc: "Natural language policy question", Required: true},
			}),
		},
		run: runPolicyQA,
	})
}

func runPolicyQA(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	question, err := stringArg(args, "question", true)
	if err != nil {
		return nil, "", err
	}
	if deps.Policy == nil {
		return nil, "", fmt.Errorf("%w: policy retrieval is not configured", contractx.ErrUpstream)
	}
	answer, err := deps.Policy.Answer(ctx, question)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", contractx.ErrUpstream, err)
	}
	return map[string]any{
		"question": question,
		"answer":   answer.Text,
		"sources":  answer.Sources,
	}, "Policy answer retrieved", nil
}
