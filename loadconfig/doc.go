// Package loadconfig classifies index files with ordered load-config rules.
//
// Each rule holds regular expressions (or one of the macros _ATTRIBUTE_,
// _INDEX_, _SUMMARY_, _SOURCE_, _PATCH_), an optional lifecycle qualifier and
// the remote/deploy flags. The first rule matching both the path and the
// file's lifecycle tag decides; unmatched files are neither staged remotely
// nor deployed locally.
//
// Example configuration:
//
//	need_deploy_index: true
//	load_config:
//	  - file_patterns: ["_ATTRIBUTE_"]
//	    lifecycle: cold
//	    remote: true
//	  - file_patterns: [".*"]
//	    deploy: true
//	lifecycle:
//	  strategy: dynamic
//	  patterns:
//	    - statistic_field: event_time
//	      lifecycle: hot
//	      range: [0, 86400]
//	      offset_base: CURRENT_TIME
//	      is_offset: true
package loadconfig
