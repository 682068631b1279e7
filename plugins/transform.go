package plugins

import (
	"context"
	"encoding/json"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/aituberflow/aituberflow-go/workflow"
	"gopkg.in/yaml.v3"
)

var templatePlaceholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// textTransformNode applies one string operation to its "text" input,
// or fills a {{varname}} template from every declared input port.
// Grounded on original_source/plugins/text-transform/node.py.
type textTransformNode struct {
	workflow.BaseNode
	operation   string
	template    string
	find        string
	replaceWith string
	delimiter   string
}

func newTextTransformNode() workflow.NodeInterface {
	return &textTransformNode{operation: "template", template: "{{text}}", delimiter: " "}
}

func (n *textTransformNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.operation = stringConfig(cfg, "operation", "template")
	n.template = stringConfig(cfg, "template", "{{text}}")
	n.find = stringConfig(cfg, "find", "")
	n.replaceWith = stringConfig(cfg, "replaceWith", "")
	n.delimiter = stringConfig(cfg, "delimiter", " ")
	nc.Log("Text transform configured: "+n.operation, "info")
	return nil
}

func (n *textTransformNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	text := stringInput(inputs["text"])
	result := text

	switch n.operation {
	case "uppercase":
		result = strings.ToUpper(text)
	case "lowercase":
		result = strings.ToLower(text)
	case "trim":
		result = strings.TrimSpace(text)
	case "replace":
		result = strings.ReplaceAll(text, n.find, n.replaceWith)
	case "split_first":
		parts := strings.SplitN(text, n.delimiter, 2)
		if len(parts) > 0 {
			result = parts[0]
		} else {
			result = ""
		}
	case "split_last":
		idx := strings.LastIndex(text, n.delimiter)
		if idx >= 0 {
			result = text[idx+len(n.delimiter):]
		} else {
			result = text
		}
	case "length":
		result = strconv.Itoa(len(text))
	case "prefix":
		result = n.template + text
	case "suffix":
		result = text + n.template
	case "template":
		result = templatePlaceholder.ReplaceAllStringFunc(n.template, func(m string) string {
			name := templatePlaceholder.FindStringSubmatch(m)[1]
			return stringInput(inputs[name])
		})
	}

	nc.Log("Transformed: '"+truncate(text, 30)+"...' -> '"+truncate(result, 30)+"...'", "info")
	return workflow.Ports{"result": result}, nil
}

// dataFormatterNode renders arbitrary input data as YAML when format is
// "yaml" and as JSON otherwise. Grounded on
// original_source/plugins/data-formatter/node.py, with the XML branch
// dropped; it has no template output mode.
type dataFormatterNode struct {
	workflow.BaseNode
	format      string
	prettyPrint bool
}

func newDataFormatterNode() workflow.NodeInterface {
	return &dataFormatterNode{format: "json", prettyPrint: true}
}

func (n *dataFormatterNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.format = stringConfig(cfg, "format", "json")
	n.prettyPrint = boolConfig(cfg, "prettyPrint", true)
	nc.Log("Data Formatter configured: "+strings.ToUpper(n.format)+" output", "info")
	return nil
}

func (n *dataFormatterNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	data := inputs["data"]
	parsed := normalizeFormatterInput(data)

	var formatted string
	var err error
	switch n.format {
	case "yaml":
		var b []byte
		b, err = yaml.Marshal(parsed)
		formatted = string(b)
	default:
		var b []byte
		if n.prettyPrint {
			b, err = json.MarshalIndent(parsed, "", "  ")
		} else {
			b, err = json.Marshal(parsed)
		}
		formatted = string(b)
	}
	if err != nil {
		nc.Log("Formatting error: "+err.Error(), "error")
		return workflow.Ports{"formatted": "Error: " + err.Error(), "parsed": parsed}, nil
	}

	nc.Log("Formatted data as "+strings.ToUpper(n.format)+" ("+strconv.Itoa(len(formatted))+" chars)", "info")
	return workflow.Ports{"formatted": formatted, "parsed": parsed}, nil
}

func normalizeFormatterInput(data interface{}) map[string]interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		return v
	case string:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(v), &m); err == nil {
			return m
		}
		return map[string]interface{}{"value": v}
	case nil:
		return map[string]interface{}{}
	default:
		return map[string]interface{}{"value": v}
	}
}

// variableNode stores a typed value, taking it from the "set" input
// when connected or falling back to a configured default. Grounded on
// original_source/plugins/variable/node.py.
type variableNode struct {
	workflow.BaseNode
	name         string
	defaultValue string
	valueType    string
}

func newVariableNode() workflow.NodeInterface {
	return &variableNode{name: "myVariable", valueType: "string"}
}

func (n *variableNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.name = stringConfig(cfg, "name", "myVariable")
	n.defaultValue = stringConfig(cfg, "defaultValue", "")
	n.valueType = stringConfig(cfg, "valueType", "string")
	nc.Log("Variable '"+n.name+"' configured", "info")
	return nil
}

func (n *variableNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	value := inputs["set"]
	if value == nil {
		value = n.defaultValue
	}

	var out interface{} = value
	switch n.valueType {
	case "number":
		s := stringInput(value)
		if strings.Contains(s, ".") {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out = f
			} else {
				nc.Log("Type conversion failed: "+err.Error(), "warning")
			}
		} else if i, err := strconv.Atoi(s); err == nil {
			out = i
		} else {
			nc.Log("Type conversion failed: "+err.Error(), "warning")
		}
	case "boolean":
		if s, ok := value.(string); ok {
			l := strings.ToLower(s)
			out = l == "true" || l == "1" || l == "yes"
		} else if b, ok := value.(bool); ok {
			out = b
		} else {
			out = value != nil
		}
	case "json":
		if s, ok := value.(string); ok {
			var parsed interface{}
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				out = parsed
			} else {
				nc.Log("Type conversion failed: "+err.Error(), "warning")
			}
		}
	default:
		out = stringInput(value)
	}

	nc.Log("Variable '"+n.name+"' = "+stringInput(out), "info")
	return workflow.Ports{"value": out}, nil
}

// randomNode generates a random number, a choice from a configured
// list, or a weighted boolean. Grounded on
// original_source/plugins/random/node.py.
type randomNode struct {
	workflow.BaseNode
	mode            string
	min, max        float64
	choices         []string
	trueProbability float64
}

func newRandomNode() workflow.NodeInterface {
	return &randomNode{mode: "number", min: 0, max: 100, trueProbability: 50}
}

func (n *randomNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.mode = stringConfig(cfg, "mode", "number")
	n.min = floatConfig(cfg, "min", 0)
	n.max = floatConfig(cfg, "max", 100)
	n.trueProbability = floatConfig(cfg, "trueProbability", 50)
	n.choices = nil
	if raw := stringConfig(cfg, "choices", ""); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				n.choices = append(n.choices, c)
			}
		}
	}
	nc.Log("Random configured: mode="+n.mode, "info")
	return nil
}

func (n *randomNode) Execute(_ context.Context, _ workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	var value interface{}
	switch n.mode {
	case "choice":
		if len(n.choices) > 0 {
			value = n.choices[rand.Intn(len(n.choices))]
			nc.Log("Random choice: "+stringInput(value), "info")
		} else {
			value = ""
			nc.Log("No choices available", "warning")
		}
	case "boolean":
		b := rand.Float64()*100 < n.trueProbability
		value = b
		nc.Log("Random boolean: "+strconv.FormatBool(b), "info")
	default:
		v := n.min + rand.Float64()*(n.max-n.min)
		value = v
		nc.Log("Random number: "+strconv.FormatFloat(v, 'g', -1, 64), "info")
	}
	return workflow.Ports{"value": value}, nil
}

// switchNode evaluates one condition against its "value" input and
// routes "data" to either the true or false output port. Grounded on
// original_source/plugins/switch/node.py.
type switchNode struct {
	workflow.BaseNode
	mode          string
	compareValue  string
	caseSensitive bool
}

func newSwitchNode() workflow.NodeInterface { return &switchNode{mode: "truthy"} }

func (n *switchNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.mode = stringConfig(cfg, "mode", "truthy")
	n.compareValue = stringConfig(cfg, "compareValue", "")
	n.caseSensitive = boolConfig(cfg, "caseSensitive", false)
	nc.Log("Switch configured: mode="+n.mode, "info")
	return nil
}

func (n *switchNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	value := inputs["value"]
	data := inputs["data"]
	if data == nil {
		data = value
	}

	result := n.evaluate(value)
	if result {
		nc.Log("Condition TRUE: routing to 'true' output", "info")
		return workflow.Ports{"true": data, "false": nil, "match": data}, nil
	}
	nc.Log("Condition FALSE: routing to 'false' output", "info")
	return workflow.Ports{"true": nil, "false": data, "match": nil}, nil
}

func (n *switchNode) evaluate(value interface{}) bool {
	switch n.mode {
	case "equals":
		return n.compareEqual(value)
	case "contains":
		return n.compareContains(value)
	case "regex":
		return n.compareRegex(value)
	case "gt":
		return n.compareNumeric(value, func(a, b float64) bool { return a > b })
	case "lt":
		return n.compareNumeric(value, func(a, b float64) bool { return a < b })
	default:
		return truthyValue(value)
	}
}

func (n *switchNode) compareEqual(value interface{}) bool {
	s := stringInput(value)
	if n.caseSensitive {
		return s == n.compareValue
	}
	return strings.EqualFold(s, n.compareValue)
}

func (n *switchNode) compareContains(value interface{}) bool {
	s := stringInput(value)
	if n.caseSensitive {
		return strings.Contains(s, n.compareValue)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(n.compareValue))
}

func (n *switchNode) compareRegex(value interface{}) bool {
	pattern := n.compareValue
	if !n.caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(stringInput(value))
}

func (n *switchNode) compareNumeric(value interface{}, cmp func(a, b float64) bool) bool {
	a, err1 := strconv.ParseFloat(stringInput(value), 64)
	b, err2 := strconv.ParseFloat(n.compareValue, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return cmp(a, b)
}

func truthyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
