// Package readiness blocks a deployment until the raw data of a version is
// fully published.
//
// FlagGate polls the raw store for a flag file written by the publisher as
// its last step. DynamoGate polls a DynamoDB commit table in which the
// publisher records every committed version of a partition:
//
//	aws dynamodb create-table \
//	  --table-name idxdeploy-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
// Both gates return ctx.Err() as soon as the context is cancelled.
package readiness
