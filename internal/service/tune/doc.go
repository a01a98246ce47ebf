// Package tune proposes an alarm profile from a recording of the alarm and
// writes it as profiles YAML.
package tune
