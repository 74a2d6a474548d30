// Package plans holds the plan catalogue: credits, prices per billing cycle
// and the unlimited marker. The catalogue is configuration, loaded once at
// startup from the built-in defaults or a YAML file (gopkg.in/yaml.v3), and
// is the only place allotments and prices are defined.
package plans
