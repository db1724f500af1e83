package tasklauncher

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// Compile-time check that ECSLauncher implements Launcher.
var _ Launcher = (*ECSLauncher)(nil)

// ECSConfig holds the configuration needed to run one-off Fargate tasks
// for the orchestrator.
type ECSConfig struct {
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// ECSLauncher implements Launcher by running a one-off Fargate task per job.
type ECSLauncher struct {
	client *ecs.Client
	cfg    ECSConfig
}

// NewECSLauncher creates a new ECSLauncher.
func NewECSLauncher(client *ecs.Client, cfg ECSConfig) *ECSLauncher {
	return &ECSLauncher{client: client, cfg: cfg}
}

// Launch runs a new task with the job's identifiers passed in as container
// environment overrides so the orchestrator process knows what to process.
func (l *ECSLauncher) Launch(ctx context.Context, input LaunchInput) (string, error) {
	assignPublicIP := types.AssignPublicIpDisabled
	if l.cfg.AssignPublicIP {
		assignPublicIP = types.AssignPublicIpEnabled
	}

	out, err := l.client.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(l.cfg.Cluster),
		TaskDefinition: aws.String(l.cfg.TaskDefinition),
		LaunchType:     types.LaunchTypeFargate,
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        l.cfg.Subnets,
				SecurityGroups: l.cfg.SecurityGroups,
				AssignPublicIp: assignPublicIP,
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{
				{
					Name: aws.String(l.cfg.ContainerName),
					Environment: []types.KeyValuePair{
						{Name: aws.String("JOB_ID"), Value: aws.String(input.JobID)},
						{Name: aws.String("OBJECT_KEY"), Value: aws.String(input.ObjectKey)},
						{Name: aws.String("OBJECT_VERSION"), Value: aws.String(input.ObjectVersion)},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("tasklauncher: run task: %w", err)
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return "", fmt.Errorf("tasklauncher: run task failed: %s: %s", aws.ToString(f.Reason), aws.ToString(f.Detail))
	}
	if len(out.Tasks) == 0 {
		return "", fmt.Errorf("tasklauncher: run task returned no tasks and no failures")
	}
	return aws.ToString(out.Tasks[0].TaskArn), nil
}
