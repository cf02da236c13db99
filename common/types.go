package common

// PolicyDocument is the JSON shape shared by IAM identity policies, trust
// policies and S3 bucket policies.
type PolicyDocument struct {
	Version   string
	Statement []PolicyStatement
}

// PolicyStatement defines a statement in a policy document. Action, Principal
// and Resource accept either a single string or a list, as the policy grammar does.
type PolicyStatement struct {
	Sid       string `json:",omitempty"`
	Effect    string
	Action    any
	Principal any `json:",omitempty"`
	Resource  any `json:",omitempty"`
}

const PolicyVersion = "2012-10-17"
